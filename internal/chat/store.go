package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lakshmanmandapati/tensora/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

const titleRunes = 30

// Store is the single source of truth for all chats and the active
// selection. One mutex serializes every mutation: network completions run
// on their own goroutines and must not interleave with UI mutations.
type Store struct {
	mu     sync.Mutex
	chats  map[string]*models.Chat
	order  []string
	active string
}

func NewStore() *Store {
	s := &Store{chats: make(map[string]*models.Chat)}
	id := s.newChatLocked()
	s.active = id
	return s
}

// CreateChat inserts a new empty temporary chat, reclaiming any other
// empty temporary chat first. The active selection is left alone; callers
// switch explicitly via SetActive.
func (s *Store) CreateChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimEmptyTemporariesLocked(s.active)
	return s.newChatLocked()
}

// StartNewChat reclaims every empty temporary chat (the active one
// included), inserts a fresh temporary chat and makes it active.
func (s *Store) StartNewChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaimEmptyTemporariesLocked("")
	id := s.newChatLocked()
	s.active = id
	return id
}

func (s *Store) newChatLocked() string {
	id := uuid.NewString()
	now := time.Now()
	s.chats[id] = &models.Chat{
		ID:          id,
		Title:       "New Chat",
		IsTemporary: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.order = append(s.order, id)
	return id
}

func (s *Store) reclaimEmptyTemporariesLocked(keep string) {
	for i := 0; i < len(s.order); {
		id := s.order[i]
		c := s.chats[id]
		if id != keep && c.IsTemporary && len(c.Messages) == 0 {
			delete(s.chats, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			continue
		}
		i++
	}
}

// SetActive switches the visible chat. The chat must exist.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[id]; !ok {
		return ErrChatNotFound
	}
	s.active = id
	return nil
}

func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Chat returns a deep copy of one chat.
func (s *Store) Chat(id string) (models.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return models.Chat{}, false
	}
	return c.Clone(), true
}

// Chats returns copies of every chat in creation order.
func (s *Store) Chats() []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Chat, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.chats[id].Clone())
	}
	return out
}

// AppendMessages appends one or more messages in a single mutation, so a
// user message and its placeholder always land together.
func (s *Store) AppendMessages(chatID string, msgs ...models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now()
	return nil
}

// ReplaceMessage applies update to the message with the given id, merging
// in place. A missing chat or message is a no-op: completions may race
// with removal and the contract is deliberately forgiving.
func (s *Store) ReplaceMessage(chatID, messageID string, update func(*models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			update(&c.Messages[i])
			c.UpdatedAt = time.Now()
			return
		}
	}
}

// RemoveMessage filters a message out by id.
func (s *Store) RemoveMessage(chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return
	}
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return
		}
	}
}

// RemoveMessagesByType strips every message of the given types. Used to
// clear placeholders before a terminal message lands, which also collapses
// duplicates if a race ever produced more than one.
func (s *Store) RemoveMessagesByType(chatID string, types ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeByTypeLocked(chatID, types)
}

func (s *Store) removeByTypeLocked(chatID string, types []string) {
	c, ok := s.chats[chatID]
	if !ok {
		return
	}
	kept := c.Messages[:0]
	for _, m := range c.Messages {
		drop := false
		for _, t := range types {
			if m.Type == t {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, m)
		}
	}
	c.Messages = kept
}

// Resolve removes all placeholder messages from the chat and appends the
// terminal message, as one mutation.
func (s *Store) Resolve(chatID string, final models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return
	}
	s.removeByTypeLocked(chatID, models.PlaceholderTypes)
	c.Messages = append(c.Messages, final)
	c.UpdatedAt = time.Now()
}

// PromoteTemporary flips a temporary chat to permanent and titles it from
// the triggering prompt.
func (s *Store) PromoteTemporary(chatID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return
	}
	c.IsTemporary = false
	c.Title = title
	c.UpdatedAt = time.Now()
}

func (s *Store) SetConversationID(chatID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		c.ConversationID = conversationID
	}
}

func (s *Store) ConversationID(chatID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		return c.ConversationID
	}
	return ""
}

// MessageCount avoids cloning when callers only need emptiness.
func (s *Store) MessageCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		return len(c.Messages)
	}
	return 0
}

// ImportChat inserts a chat loaded from the local archive. An existing
// chat with the same id is replaced in place.
func (s *Store) ImportChat(c models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	cp := c.Clone()
	s.chats[c.ID] = &cp
}

// DeriveTitle builds a chat title from the first prompt: the first 30
// runes, with an ellipsis when truncated.
func DeriveTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) <= titleRunes {
		return prompt
	}
	return string(r[:titleRunes]) + "..."
}
