package rtc

import (
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

var directions = []string{"sendrecv", "sendonly", "recvonly", "inactive"}

// summarize renders the media sections of a description as "audio:sendrecv video:recvonly"
// and counts the candidates already embedded in it.
func summarize(raw string) (media string, candidates int, err error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(raw)); err != nil {
		return "", 0, err
	}
	parts := make([]string, 0, len(sd.MediaDescriptions))
	for _, md := range sd.MediaDescriptions {
		dir := "sendrecv"
		for _, d := range directions {
			if _, ok := md.Attribute(d); ok {
				dir = d
				break
			}
		}
		parts = append(parts, md.MediaName.Media+":"+dir)
		for _, a := range md.Attributes {
			if a.Key == "candidate" {
				candidates++
			}
		}
	}
	return strings.Join(parts, " "), candidates, nil
}

func (e *Engine) logDescription(what string, d webrtc.SessionDescription) {
	media, candidates, err := summarize(d.SDP)
	if err != nil {
		e.logger.Warn().Err(err).Str("type", d.Type.String()).Msg("unparseable description")
		return
	}
	e.logger.Debug().
		Str("what", what).
		Str("type", d.Type.String()).
		Str("media", media).
		Int("candidates", candidates).
		Msg("description")
}
