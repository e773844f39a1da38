// Package sloghooks logs finsync hook events to slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/finsync"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CoalescedEvery uint64
	SelfHealEvery  uint64
	SkippedEvery   uint64
	// Optional key redactor for shared-tier storage keys. Defaults to a
	// SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	coalescedCtr atomic.Uint64
	selfHealCtr  atomic.Uint64
	skippedCtr   atomic.Uint64
}

var _ finsync.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchCoalesced(key string) {
	if h.l == nil || !sample(h.opts.CoalescedEvery, &h.coalescedCtr) {
		return
	}
	h.l.Debug("finsync.fetch_coalesced", "key", key)
}

func (h *Hooks) LoadSkipped(collection string) {
	if h.l == nil || !sample(h.opts.SkippedEvery, &h.skippedCtr) {
		return
	}
	h.l.Debug("finsync.load_skipped", "collection", collection)
}

func (h *Hooks) PageDiscarded(collection string) {
	if h.l == nil {
		return
	}
	h.l.Info("finsync.page_discarded", "collection", collection)
}

func (h *Hooks) HTTPStatus(method, url string, status int) {
	if h.l == nil {
		return
	}
	h.l.Warn("finsync.http_status",
		"method", method,
		"url", url,
		"status", status)
}

func (h *Hooks) SharedSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("finsync.shared_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) SharedSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("finsync.shared_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("finsync.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}
