package verify

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/dchest/captcha"
	"github.com/google/uuid"
)

const (
	captchaDigits  = 4
	captchaDecoys  = 7
	captchaWidth   = captcha.StdWidth
	captchaHeight  = captcha.StdHeight
	captchaColumns = 2
)

// challenge is one rendered captcha: the image bytes, the right answer
// and the shuffled option list shown as buttons.
type challenge struct {
	image   []byte
	answer  string
	options []string
}

func digitsToString(digits []byte) string {
	out := make([]byte, len(digits))
	for i, d := range digits {
		out[i] = '0' + d
	}
	return string(out)
}

// newChallenge renders a fresh 4 digit captcha with 7 decoy answers.
func newChallenge() (*challenge, error) {
	digits := captcha.RandomDigits(captchaDigits)
	answer := digitsToString(digits)

	img := captcha.NewImage(uuid.NewString(), digits, captchaWidth, captchaHeight)
	var buf bytes.Buffer
	if _, err := img.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render captcha: %w", err)
	}

	seen := map[string]struct{}{answer: {}}
	options := []string{answer}
	for len(options) < captchaDecoys+1 {
		decoy := digitsToString(captcha.RandomDigits(captchaDigits))
		if _, dup := seen[decoy]; dup {
			continue
		}
		seen[decoy] = struct{}{}
		options = append(options, decoy)
	}
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return &challenge{image: buf.Bytes(), answer: answer, options: options}, nil
}
