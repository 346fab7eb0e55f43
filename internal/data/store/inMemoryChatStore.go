package store

import (
	"context"
	"sync"

	"github.com/immihelp/formapi/internal/config"
)

type InMemoryChatStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]exchange
}

func NewInMemoryChatStore() *InMemoryChatStore {
	return &InMemoryChatStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]exchange),
	}
}

func (s *InMemoryChatStore) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	s.chatLock.Lock()
	defer s.chatLock.Unlock()
	s.chatMap[sessionID] = append(s.chatMap[sessionID], exchange{Question: question, Answer: answer})
	return nil
}

func (s *InMemoryChatStore) History(ctx context.Context, sessionID string) ([]string, error) {
	s.chatLock.RLock()
	defer s.chatLock.RUnlock()

	exchanges := s.chatMap[sessionID]
	if len(exchanges) > config.ChatHistoryWindow {
		exchanges = exchanges[len(exchanges)-config.ChatHistoryWindow:]
	}

	history := make([]string, 0, len(exchanges))
	for _, e := range exchanges {
		history = append(history, e.prompt())
	}
	return history, nil
}
