package session

import (
	"context"
	"strconv"
	"strings"
)

// Callback data follows the flat "<namespace>_<args...>" grammar: an exact
// dictionary first, then prefix patterns in a fixed order. Same shape as the
// deep link grammar but scoped to in-session button presses.

type callbackFunc func(ctx context.Context, userID, chatID int64, value string)

func (s *Service) dispatchCallback(ctx context.Context, userID, chatID int64, data string) bool {
	data = strings.TrimSpace(data)
	if data == "" {
		return false
	}

	exact := map[string]callbackFunc{
		"nav_main":     s.cbMain,
		"nav_library":  s.cbLibrary,
		"nav_help":     s.cbHelp,
		"nav_generate": s.cbGenerate,
		"nav_back":     s.cbBack,
	}
	if fn, ok := exact[data]; ok {
		fn(ctx, userID, chatID, "")
		return true
	}

	prefixes := []struct {
		prefix string
		fn     callbackFunc
	}{
		{"lib_page_", s.cbLibraryPage},
		{"project_details_", s.cbProjectDetails},
		{"track_details_", s.cbTrackDetails},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(data, p.prefix) {
			p.fn(ctx, userID, chatID, data[len(p.prefix):])
			return true
		}
	}
	return false
}

func (s *Service) cbMain(ctx context.Context, userID, chatID int64, _ string) {
	if !s.nav.NavigateTo(userID, "main", nil) {
		return
	}
	s.renderMainMenu(ctx, userID, chatID)
}

func (s *Service) cbLibrary(ctx context.Context, userID, chatID int64, _ string) {
	if !s.nav.NavigateTo(userID, "library", nil) {
		return
	}
	s.renderLibrary(ctx, userID, chatID, 1)
}

func (s *Service) cbHelp(ctx context.Context, userID, chatID int64, _ string) {
	if !s.nav.NavigateTo(userID, "help", nil) {
		return
	}
	s.renderHelp(ctx, userID, chatID)
}

func (s *Service) cbGenerate(ctx context.Context, userID, chatID int64, _ string) {
	if !s.nav.NavigateTo(userID, "generate", nil) {
		return
	}
	s.renderGenerate(ctx, userID, chatID)
}

// cbBack resolves the generic back action without per-screen caller state.
func (s *Service) cbBack(ctx context.Context, userID, chatID int64, _ string) {
	route := s.nav.PreviousRoute(userID)
	if !s.nav.NavigateTo(userID, route, nil) {
		return
	}
	s.renderRoute(ctx, userID, chatID, route)
}

func (s *Service) cbLibraryPage(ctx context.Context, userID, chatID int64, value string) {
	page, err := strconv.Atoi(value)
	if err != nil || page < 1 {
		page = 1
	}
	if !s.nav.NavigateTo(userID, "lib_page_"+strconv.Itoa(page), nil) {
		return
	}
	s.renderLibrary(ctx, userID, chatID, page)
}

func (s *Service) cbProjectDetails(ctx context.Context, userID, chatID int64, value string) {
	if !s.nav.NavigateTo(userID, "project_details", nil) {
		return
	}
	s.renderProjectDetails(ctx, userID, chatID, value)
}

func (s *Service) cbTrackDetails(ctx context.Context, userID, chatID int64, value string) {
	if !s.nav.NavigateTo(userID, "track_details", nil) {
		return
	}
	s.renderTrackDetails(ctx, userID, chatID, value)
}
