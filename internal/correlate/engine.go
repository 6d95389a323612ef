package correlate

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"capflow/internal/capture"
	"capflow/internal/config"
	"capflow/internal/documents"
	"capflow/internal/logging"
)

// Decoder turns response payloads into documents. Any error is treated as a
// decode failure; the engine does not inspect it further.
type Decoder interface {
	DecodeDispatch(body []byte) (documents.Dispatch, error)
	DecodePlaylist(playlistURL string, body []byte) (documents.Playlist, error)
	DecodeVariant(body []byte) (documents.Variant, error)
	DecodeKey(requestBody, responseBody []byte, issued time.Time) (documents.Key, error)
}

// Engine correlates transactions into download sessions. It is not safe for
// concurrent use; producers must serialize calls to Ingest.
type Engine struct {
	decoder    Decoder
	endpoints  Endpoints
	statuses   capture.StatusRange
	runID      string
	baseLogger *slog.Logger
	logger     *slog.Logger

	registry  *Registry
	pool      *KeyPool
	completed []*Session
	stats     Stats

	finalizers []func(Report)
	finalized  bool
	report     Report
}

// NewEngine builds an engine with the default endpoints, a 2xx success
// range, and the consume key policy unless options say otherwise.
func NewEngine(decoder Decoder, opts ...Option) *Engine {
	if decoder == nil {
		decoder = documents.Codec{}
	}
	defaults := config.Default()
	e := &Engine{
		decoder: decoder,
		endpoints: Endpoints{
			DispatchURL: defaults.Endpoints.DispatchURL,
			KeyURL:      defaults.Endpoints.KeyURL,
		},
		statuses: capture.DefaultStatusRange,
		registry: NewRegistry(),
		pool:     NewKeyPool(KeyPolicyConsume),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	logger := logging.NewComponentLogger(e.baseLogger, "correlate")
	if e.runID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, e.runID))
	}
	e.logger = logger
	return e
}

// Ingest processes one transaction to completion and returns the sessions it
// completed, in completion order.
func (e *Engine) Ingest(tx capture.Transaction) []*Session {
	if e.finalized {
		panic("correlate: ingest after finalize")
	}
	e.stats.Transactions++

	if !e.statuses.Contains(tx.Status) {
		e.stats.SkippedStatus++
		e.logger.Debug("skipping transaction",
			logging.String(logging.FieldReason, "status"),
			logging.Int(logging.FieldStatus, tx.Status),
			logging.String(logging.FieldURL, tx.URL),
		)
		return nil
	}

	route := Classify(tx.URL, e.endpoints, e.registry)
	switch route.Kind {
	case RouteUnrecognized:
		e.stats.Unrecognized++
		return nil
	case RouteNewDispatch:
		e.handleDispatch(tx)
		return nil
	case RoutePlaylist:
		e.handlePlaylist(route.Session, tx)
		return nil
	case RouteVariant:
		return e.handleVariant(route.Session, tx)
	case RouteKeyFetch:
		return e.handleKey(tx)
	default:
		panic(fmt.Sprintf("correlate: unhandled route %s", route.Kind))
	}
}

func (e *Engine) handleDispatch(tx capture.Transaction) {
	dispatch, err := e.decoder.DecodeDispatch(tx.ResponseBody)
	if err != nil {
		e.stats.DispatchDecodeFailures++
		e.logDecodeFailure(0, RouteNewDispatch, tx, err)
		return
	}

	session := e.registry.Create(dispatch, tx.Timestamp)
	e.stats.SessionsCreated++
	e.sessionLogger(session.ID).Debug("session created",
		logging.String(logging.FieldStage, string(session.Stage)),
		logging.String("title", session.Title()),
		logging.String("playlist_url", session.PlaylistURL),
	)
}

func (e *Engine) handlePlaylist(id SessionID, tx capture.Transaction) {
	playlist, err := e.decoder.DecodePlaylist(tx.URL, tx.ResponseBody)
	if err != nil {
		e.stats.PlaylistDecodeFailures++
		e.logDecodeFailure(id, RoutePlaylist, tx, err)
		return
	}

	session := e.registry.AttachPlaylist(id, playlist)
	e.sessionLogger(id).Debug("playlist attached",
		logging.String(logging.FieldStage, string(session.Stage)),
		logging.Int("alternatives", len(playlist.VariantURLs)),
	)
}

func (e *Engine) handleVariant(id SessionID, tx capture.Transaction) []*Session {
	variant, err := e.decoder.DecodeVariant(tx.ResponseBody)
	if err != nil {
		e.stats.VariantDecodeFailures++
		e.logDecodeFailure(id, RouteVariant, tx, err)
		return nil
	}

	variant.KeyURIs = uniqueSorted(variant.KeyURIs)
	session := e.registry.SelectVariant(id, tx.URL, variant)
	logger := e.sessionLogger(id)

	for _, uri := range session.RequiredKeys {
		key, ok := e.pool.ClaimIfEarly(uri)
		if !ok {
			e.pool.RegisterWaiter(uri, id)
			continue
		}
		session.collect(key)
		e.stats.EarlyKeysClaimed++
		if key.Expired(tx.Timestamp) {
			logging.WarnWithImpact(logger, "early key expired before it was claimed", "renew-after elapsed",
				logging.String(logging.FieldKeyURI, uri),
				logging.Time("expiration", key.Expiration),
				logging.String(logging.FieldImpact, "key may need to be fetched again"),
			)
		}
	}

	if session.Satisfied() {
		return []*Session{e.complete(id, tx.Timestamp)}
	}

	e.registry.AwaitKeys(id)
	logger.Debug("variant selected",
		logging.String(logging.FieldStage, string(session.Stage)),
		logging.String("variant_url", session.VariantURL),
		logging.Int("missing_keys", len(session.MissingKeys())),
	)
	return nil
}

func (e *Engine) handleKey(tx capture.Transaction) []*Session {
	key, err := e.decoder.DecodeKey(tx.RequestBody, tx.ResponseBody, tx.Timestamp)
	if err != nil {
		e.stats.KeyDecodeFailures++
		e.logDecodeFailure(0, RouteKeyFetch, tx, err)
		return nil
	}
	e.stats.KeysObserved++

	satisfied := e.pool.ObserveKey(key, func(id SessionID) bool {
		session := e.registry.mustGet(id, StageAwaitingKeys)
		session.collect(key)
		return session.Satisfied()
	})
	if len(satisfied) == 0 {
		e.logger.Debug("key observed",
			logging.String(logging.FieldKeyURI, key.URI),
			logging.Bool("early", e.pool.Early(key.URI)),
		)
		return nil
	}

	completed := make([]*Session, 0, len(satisfied))
	for _, id := range satisfied {
		completed = append(completed, e.complete(id, tx.Timestamp))
	}
	return completed
}

func (e *Engine) complete(id SessionID, at time.Time) *Session {
	session := e.registry.Complete(id, at)
	e.completed = append(e.completed, session)
	e.stats.SessionsCompleted++
	e.sessionLogger(id).Info("session complete",
		logging.String("title", session.Title()),
		logging.String("variant_url", session.VariantURL),
		logging.Int("keys", len(session.Keys)),
	)
	return session
}

func (e *Engine) logDecodeFailure(id SessionID, route RouteKind, tx capture.Transaction, err error) {
	logger := e.logger
	if id != 0 {
		logger = e.sessionLogger(id)
	}
	logger.Debug("skipping transaction",
		logging.String(logging.FieldReason, "decode"),
		logging.String("document", route.String()),
		logging.String(logging.FieldURL, tx.URL),
		logging.Error(err),
	)
}

func (e *Engine) sessionLogger(id SessionID) *slog.Logger {
	return e.logger.With(logging.SessionID(int64(id)))
}

// Completed returns every completed session in completion order, including
// sessions that deduplication will later drop.
func (e *Engine) Completed() []*Session {
	return slices.Clone(e.completed)
}

// InProgress returns the sessions that have not completed yet, in ID order.
func (e *Engine) InProgress() []*Session {
	return e.registry.InProgress()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// KeyPolicy reports the policy of the engine's key pool.
func (e *Engine) KeyPolicy() KeyPolicy {
	return e.pool.Policy()
}

// RunID returns the run identifier set with WithRunID.
func (e *Engine) RunID() string {
	return e.runID
}

// Finalized reports whether Finalize has run.
func (e *Engine) Finalized() bool {
	return e.finalized
}

// Finalize deduplicates the completed sessions, runs the finalization hooks,
// and returns the report. Later calls return the same report without running
// the hooks again.
func (e *Engine) Finalize() Report {
	if e.finalized {
		return e.report
	}
	e.finalized = true

	kept, duplicates := Dedupe(e.completed)
	e.report = Report{
		RunID:         e.runID,
		KeyPolicy:     e.pool.Policy(),
		Completed:     kept,
		Duplicates:    duplicates,
		Stalled:       e.registry.InProgress(),
		UnclaimedKeys: e.pool.Unclaimed(),
		Stats:         e.stats,
	}

	e.logger.Info("correlation finished",
		logging.Int("transactions", e.stats.Transactions),
		logging.Int("completed", len(kept)),
		logging.Int("duplicates", len(duplicates)),
		logging.Int("stalled", len(e.report.Stalled)),
		logging.Int("unclaimed_keys", len(e.report.UnclaimedKeys)),
	)
	for _, hook := range e.finalizers {
		hook(e.report)
	}
	return e.report
}

func uniqueSorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
