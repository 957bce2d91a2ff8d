package h264encoder

import (
	"bufio"
	"io"
)

// H.264 NAL unit types used for stream segmentation.
const (
	nalIDR = 5
	nalAUD = 9
)

// auSplitter incrementally splits an Annex B byte stream into access
// units. Every unit starts with an access unit delimiter, so a boundary is
// any AUD start code after the unit's own leading one.
type auSplitter struct {
	r   *bufio.Reader
	buf []byte
	eof bool
}

func newAUSplitter(r *bufio.Reader) *auSplitter {
	return &auSplitter{r: r}
}

// Next returns the next complete access unit. At stream end it returns
// (nil, io.EOF); a read failure returns (nil, err).
func (s *auSplitter) Next() ([]byte, error) {
	for {
		if i := s.findBoundary(); i > 0 {
			au := make([]byte, i)
			copy(au, s.buf[:i])
			s.buf = s.buf[i:]
			return au, nil
		}
		if s.eof {
			if len(s.buf) == 0 {
				return nil, io.EOF
			}
			au := s.buf
			s.buf = nil
			return au, nil
		}

		chunk := make([]byte, 4096)
		n, err := s.r.Read(chunk)
		s.buf = append(s.buf, chunk[:n]...)
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			return nil, err
		}
	}
}

// findBoundary returns the offset of the next AUD start code after
// position 0, or -1 when the buffer holds no complete boundary yet.
func (s *auSplitter) findBoundary() int {
	b := s.buf
	for i := 1; i+4 < len(b); i++ {
		if b[i] != 0 || b[i+1] != 0 {
			continue
		}
		if b[i+2] == 1 && b[i+3]&0x1F == nalAUD {
			return i
		}
		if b[i+2] == 0 && b[i+3] == 1 && b[i+4]&0x1F == nalAUD {
			return i
		}
	}
	return -1
}

// hasIDR reports whether the access unit contains an IDR slice.
func hasIDR(au []byte) bool {
	for i := 0; i+3 < len(au); i++ {
		if au[i] != 0 || au[i+1] != 0 {
			continue
		}
		if au[i+2] == 1 {
			if au[i+3]&0x1F == nalIDR {
				return true
			}
		} else if au[i+2] == 0 && i+4 < len(au) && au[i+3] == 1 {
			if au[i+4]&0x1F == nalIDR {
				return true
			}
		}
	}
	return false
}
