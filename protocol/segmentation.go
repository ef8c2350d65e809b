package protocol

const (
	segContinue = 'C'
	segEnd      = 'E'
)

// Segmentation splits an Encode'd payload into MTU-sized chunks, tagging
// every non-final chunk with a trailing 'C' and the final one with 'E',
// and reverses the process on Decode by accumulating chunks until an 'E'
// marker closes out a message. Above this layer MTU is unbounded, since
// a message of any size can be walked down to fit the link below.
type Segmentation struct {
	Base
	mtu int

	partial []byte
}

// NewSegmentation returns a Segmentation layer that splits payloads into
// frames of at most mtu bytes total, the trailing marker byte included.
func NewSegmentation(mtu int) *Segmentation {
	return &Segmentation{Base: NewBase(), mtu: mtu}
}

func (s *Segmentation) MTU() int { return 0 }

func (s *Segmentation) Encode(p []byte) error {
	if s.mtu <= 0 {
		return s.Down(append(append([]byte{}, p...), segEnd))
	}
	for {
		chunk := p
		marker := byte(segEnd)
		if len(chunk) > s.mtu-1 {
			chunk = chunk[:s.mtu-1]
			marker = segContinue
		}
		if err := s.Down(append(append([]byte{}, chunk...), marker)); err != nil {
			return err
		}
		p = p[len(chunk):]
		if marker == segEnd {
			return nil
		}
	}
}

func (s *Segmentation) Decode(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	marker := p[len(p)-1]
	s.partial = append(s.partial, p[:len(p)-1]...)
	switch marker {
	case segEnd:
		msg := s.partial
		s.partial = nil
		return s.Up(msg)
	case segContinue:
		return nil
	default:
		s.LogWarning.Print("protocol: segmentation frame missing end marker")
		s.partial = nil
		return nil
	}
}

func (s *Segmentation) Reset() { s.partial = nil }
