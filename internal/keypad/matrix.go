package keypad

import (
	"errors"
	"fmt"

	"github.com/sweeney/arming-panel/internal/gpio"
)

// queueCap bounds the event FIFO. When it is full a new Pressed edge is
// dropped, and a new Released edge evicts the oldest queued Pressed edge.
const queueCap = 16

var errKeymapShape = errors.New("keymap does not match row and column pins")

// MatrixScanner scans a row/column key matrix. Columns are outputs held high
// and strobed low one at a time; rows are pulled-up inputs, so a closed key
// reads low on its row while its column is strobed.
type MatrixScanner struct {
	pins   gpio.Pins
	rows   []int
	cols   []int
	keymap [][]rune

	down  [][]bool
	queue []Event
}

// NewMatrixScanner claims the matrix lines. A nil keymap means Keymap4x3.
func NewMatrixScanner(pins gpio.Pins, rows, cols []int, keymap [][]rune) (*MatrixScanner, error) {
	if keymap == nil {
		keymap = Keymap4x3
	}
	if len(keymap) != len(rows) {
		return nil, fmt.Errorf("%w: %d rows, %d pins", errKeymapShape, len(keymap), len(rows))
	}
	for _, r := range keymap {
		if len(r) != len(cols) {
			return nil, fmt.Errorf("%w: %d columns, %d pins", errKeymapShape, len(r), len(cols))
		}
	}

	s := &MatrixScanner{
		pins:   pins,
		rows:   append([]int(nil), rows...),
		cols:   append([]int(nil), cols...),
		keymap: keymap,
		down:   make([][]bool, len(rows)),
	}
	for i := range s.down {
		s.down[i] = make([]bool, len(cols))
	}

	for _, r := range s.rows {
		if err := pins.ConfigureInputPullup(r); err != nil {
			return nil, fmt.Errorf("configure row %d: %w", r, err)
		}
	}
	for _, c := range s.cols {
		if err := pins.ConfigureOutput(c); err != nil {
			return nil, fmt.Errorf("configure column %d: %w", c, err)
		}
		if err := pins.Write(c, true); err != nil {
			return nil, fmt.Errorf("release column %d: %w", c, err)
		}
	}
	return s, nil
}

// Poll strobes every column once and queues an event for each key whose
// state changed since the previous poll. Presses are queued before releases
// within a column, in row order.
func (s *MatrixScanner) Poll() error {
	for ci, c := range s.cols {
		if err := s.pins.Write(c, false); err != nil {
			return fmt.Errorf("strobe column %d: %w", c, err)
		}

		for ri, r := range s.rows {
			high, err := s.pins.Read(r)
			if err != nil {
				_ = s.pins.Write(c, true)
				return fmt.Errorf("read row %d: %w", r, err)
			}

			closed := !high
			if closed == s.down[ri][ci] {
				continue
			}
			s.down[ri][ci] = closed

			kind := Released
			if closed {
				kind = Pressed
			}
			s.push(Event{Kind: kind, Key: KeyFromLabel(s.keymap[ri][ci])})
		}

		if err := s.pins.Write(c, true); err != nil {
			return fmt.Errorf("release column %d: %w", c, err)
		}
	}
	return nil
}

// HasEvent reports whether an event is queued.
func (s *MatrixScanner) HasEvent() bool {
	return len(s.queue) > 0
}

// NextEvent dequeues the oldest event, or a NoKey event if none is queued.
func (s *MatrixScanner) NextEvent() Event {
	if len(s.queue) == 0 {
		return Event{Key: NoKey}
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev
}

func (s *MatrixScanner) push(ev Event) {
	if len(s.queue) < queueCap {
		s.queue = append(s.queue, ev)
		return
	}
	if ev.Kind != Released {
		return
	}

	// A lost release would leave the key held forever.
	evict := 0
	for i, q := range s.queue {
		if q.Kind == Pressed {
			evict = i
			break
		}
	}
	s.queue = append(s.queue[:evict], s.queue[evict+1:]...)
	s.queue = append(s.queue, ev)
}
