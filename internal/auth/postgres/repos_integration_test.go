// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

//go:build integration

package postgres_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx   context.Context
		users *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)
		users = postgres.NewUserRepository(testPool)
	})

	insert := func(name string) *auth.UserRecord {
		rec, err := auth.NewUserRecord(name, "salt-"+name, []byte("hash-"+name), time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Insert(ctx, rec)).To(Succeed())
		return rec
	}

	It("round-trips a record", func() {
		rec := insert("alice")

		got, err := users.Lookup(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Salt).To(Equal(rec.Salt))
		Expect(got.PasswordHash).To(Equal(rec.PasswordHash))
	})

	It("rejects duplicate names", func() {
		insert("alice")
		rec, err := auth.NewUserRecord("alice", "other", []byte{1}, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Insert(ctx, rec)).To(MatchError(auth.ErrConflict))
	})

	It("updates only the hash", func() {
		insert("alice")
		Expect(users.UpdateHash(ctx, "alice", []byte("new"))).To(Succeed())

		got, err := users.Lookup(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Salt).To(Equal("salt-alice"))
		Expect(got.PasswordHash).To(Equal([]byte("new")))
	})

	It("reports missing users", func() {
		_, err := users.Lookup(ctx, "nobody")
		Expect(err).To(MatchError(auth.ErrNotFound))
		Expect(users.UpdateHash(ctx, "nobody", []byte{1})).To(MatchError(auth.ErrNotFound))
		Expect(users.Delete(ctx, "nobody")).To(MatchError(auth.ErrNotFound))
	})

	It("lists names in order", func() {
		insert("carol")
		insert("alice")
		insert("bob")

		names, err := users.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"alice", "bob", "carol"}))
	})
})

var _ = Describe("SessionRepository", func() {
	var (
		ctx      context.Context
		sessions *postgres.SessionRepository
		now      time.Time
	)

	newSession := func(fill, username string, issued time.Time, ttl time.Duration) *auth.SessionContext {
		s, err := auth.NewSessionContext(strings.Repeat(fill, 90), username, issued, ttl)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)
		now = time.Now().UTC().Truncate(time.Microsecond)
		sessions = postgres.NewSessionRepository(testPool)

		users := postgres.NewUserRepository(testPool)
		for _, name := range []string{"alice", "bob"} {
			rec, err := auth.NewUserRecord(name, "salt", []byte{1}, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(users.Insert(ctx, rec)).To(Succeed())
		}
	})

	It("stores and retrieves by token", func() {
		s := newSession("a", "alice", now, time.Hour)
		Expect(sessions.Put(ctx, s)).To(Succeed())

		got, err := sessions.Get(ctx, s.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Username).To(Equal("alice"))
		Expect(got.ExpiresAt).To(BeTemporally("==", s.ExpiresAt))
	})

	It("keeps one session per user", func() {
		first := newSession("a", "alice", now, time.Hour)
		second := newSession("b", "alice", now, time.Hour)
		Expect(sessions.Put(ctx, first)).To(Succeed())
		Expect(sessions.Put(ctx, second)).To(Succeed())

		_, err := sessions.Get(ctx, first.Token)
		Expect(err).To(MatchError(auth.ErrNotFound))
		_, err = sessions.Get(ctx, second.Token)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores sessions without expiry", func() {
		s := newSession("a", "alice", now, 0)
		Expect(sessions.Put(ctx, s)).To(Succeed())

		got, err := sessions.Get(ctx, s.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ExpiresAt.IsZero()).To(BeTrue())
	})

	It("rejects sessions for unknown users", func() {
		Expect(sessions.Put(ctx, newSession("c", "ghost", now, time.Hour))).To(MatchError(auth.ErrNotFound))
	})

	It("deletes only expired sessions", func() {
		Expect(sessions.Put(ctx, newSession("a", "alice", now.Add(-2*time.Hour), time.Hour))).To(Succeed())
		live := newSession("b", "bob", now, time.Hour)
		Expect(sessions.Put(ctx, live)).To(Succeed())

		n, err := sessions.DeleteExpired(ctx, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = sessions.Get(ctx, live.Token)
		Expect(err).NotTo(HaveOccurred())
	})

	It("drops sessions when the user is deleted", func() {
		s := newSession("a", "alice", now, time.Hour)
		Expect(sessions.Put(ctx, s)).To(Succeed())
		Expect(postgres.NewUserRepository(testPool).Delete(ctx, "alice")).To(Succeed())

		_, err := sessions.Get(ctx, s.Token)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
