package transcription_test

import "github.com/openai/openai-go/option"

func whisperBaseURL(u string) option.RequestOption {
	return option.WithBaseURL(u + "/")
}
