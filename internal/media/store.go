package media

// Store holds the image shown to the user and the untouched upload it came
// from. It is not safe for concurrent use; the session controller guards it.
type Store struct {
	current   string
	original  string
	comparing bool
	epoch     uint64
}

// SetImage replaces both the current and the original image.
func (s *Store) SetImage(dataURI string) {
	s.current = dataURI
	s.original = dataURI
	s.comparing = false
	s.epoch++
}

// SetEnhancedImage replaces only what is displayed; the original is kept
// so every enhancement starts again from the upload.
func (s *Store) SetEnhancedImage(dataURI string) {
	s.current = dataURI
}

func (s *Store) Clear() {
	s.current = ""
	s.original = ""
	s.comparing = false
	s.epoch++
}

func (s *Store) BeginCompare() { s.comparing = true }
func (s *Store) EndCompare()   { s.comparing = false }

func (s *Store) Current() string  { return s.current }
func (s *Store) Original() string { return s.original }
func (s *Store) Comparing() bool  { return s.comparing }
func (s *Store) HasImage() bool   { return s.original != "" }

// Displayed is what the preview should render: the original while a
// compare gesture is held, otherwise the current image.
func (s *Store) Displayed() string {
	if s.comparing {
		return s.original
	}
	return s.current
}

func (s *Store) HasBeenEnhanced() bool {
	return s.current != s.original
}

// Epoch changes whenever the upload is replaced or removed. Async work
// captures it up front and drops its result if it no longer matches.
func (s *Store) Epoch() uint64 {
	return s.epoch
}
