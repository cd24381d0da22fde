package domain

type SDPType int

const (
	SDPOffer SDPType = iota + 1
	SDPAnswer
)

func (t SDPType) String() string {
	switch t {
	case SDPOffer:
		return "offer"
	case SDPAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// SessionDescriptor is an immutable offer or answer.
type SessionDescriptor struct {
	Type SDPType
	SDP  string
}

func NewOffer(sdp string) SessionDescriptor  { return SessionDescriptor{Type: SDPOffer, SDP: sdp} }
func NewAnswer(sdp string) SessionDescriptor { return SessionDescriptor{Type: SDPAnswer, SDP: sdp} }

// Candidate is one connectivity candidate, trickled separately from the description.
type Candidate struct {
	MediaLineID    string
	MediaLineIndex int
	Description    string
}

// Constraints tune offer/answer creation. The zero value means no constraints.
type Constraints struct {
	ICERestart             bool
	VoiceActivityDetection bool
}

type MediaKind int

const (
	Audio MediaKind = iota
	Video
)

func (k MediaKind) String() string {
	if k == Video {
		return "video"
	}
	return "audio"
}
