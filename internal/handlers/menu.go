package handlers

import (
	"sync"
	"time"
)

const (
	menuCard     = "card"
	menuSettings = "settings"
	menuPlatform = "platform"
	menuAccount  = "account"
	menuModes    = "modes"
	menuFormat   = "format"
	menuLanguage = "language"
)

// menuState is what the chat's inline message currently shows. The
// session itself lives in the registry.
type menuState struct {
	Menu      string
	MessageID int

	AwaitingInstruction bool

	UpdatedAt time.Time
}

type menuStore struct {
	mu sync.Mutex
	m  map[int64]*menuState
}

func newMenuStore() *menuStore {
	return &menuStore{m: make(map[int64]*menuState)}
}

func (s *menuStore) Get(chatID int64) menuState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(chatID)
}

func (s *menuStore) Update(chatID int64, fn func(*menuState)) menuState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID)
	if fn != nil {
		fn(st)
	}
	if st.Menu == "" {
		st.Menu = menuCard
	}
	st.UpdatedAt = time.Now()
	return *st
}

func (s *menuStore) Reset(chatID int64) {
	s.Update(chatID, func(st *menuState) { *st = defaultMenuState() })
}

func (s *menuStore) getOrCreateLocked(chatID int64) *menuState {
	if st, ok := s.m[chatID]; ok {
		return st
	}
	st := defaultMenuState()
	s.m[chatID] = &st
	return s.m[chatID]
}

func defaultMenuState() menuState {
	return menuState{Menu: menuCard, UpdatedAt: time.Now()}
}
