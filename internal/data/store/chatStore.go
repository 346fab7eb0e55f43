// Package store keeps per-session chat history so the RAG prompt can
// carry the recent conversation. Redis is the normal backend; the
// in-memory store covers deployments without one.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/data/redisstore"
	"github.com/immihelp/formapi/pkg/logging"
)

type ChatStore interface {
	// AppendExchange records one question/answer pair for the session.
	AppendExchange(ctx context.Context, sessionID, question, answer string) error
	// History returns the most recent exchanges, oldest first, each
	// formatted for direct inclusion in a prompt.
	History(ctx context.Context, sessionID string) ([]string, error)
}

type exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (e exchange) prompt() string {
	return fmt.Sprintf("Question: %s Answer: %s", e.Question, e.Answer)
}

type RedisChatStore struct {
	store  *redisstore.Store
	logger *logging.Logger
}

func NewRedisChatStore(store *redisstore.Store) *RedisChatStore {
	return &RedisChatStore{
		store:  store,
		logger: logging.NewLogger("ChatStore"),
	}
}

func (s *RedisChatStore) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session", sessionID)

	data, err := json.Marshal(exchange{Question: question, Answer: answer})
	if err != nil {
		log.Error("error marshalling exchange", "error", err)
		return err
	}

	if err := s.store.ListPush(ctx, historyKey(sessionID), data); err != nil {
		log.Error("error saving chat", "error", err)
		return err
	}
	// stale sessions expire on their own
	return s.store.Expire(ctx, historyKey(sessionID), config.RedisChatHistoryTTL)
}

func (s *RedisChatStore) History(ctx context.Context, sessionID string) ([]string, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "session", sessionID)

	raw, err := s.store.ListTail(ctx, historyKey(sessionID), config.ChatHistoryWindow)
	if err != nil {
		if s.store.IsNil(err) {
			return nil, nil
		}
		log.Error("error getting history", "error", err)
		return nil, err
	}

	history := make([]string, 0, len(raw))
	for _, entry := range raw {
		var e exchange
		if err := json.Unmarshal([]byte(entry), &e); err != nil {
			log.Warn("skipping unreadable history entry", "error", err)
			continue
		}
		history = append(history, e.prompt())
	}
	return history, nil
}

func historyKey(sessionID string) string {
	return "chat:" + sessionID
}
