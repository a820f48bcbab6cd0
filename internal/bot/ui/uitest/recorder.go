// Package uitest: записывающий ui.Sender для тестов обработчиков.
package uitest

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Recorder запоминает всё, что обработчик отправил в Telegram.
type Recorder struct {
	mu       sync.Mutex
	Messages []tgbotapi.MessageConfig
	Photos   []tgbotapi.PhotoConfig
	Requests []tgbotapi.Chattable
}

func (r *Recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		r.Messages = append(r.Messages, m)
	case tgbotapi.PhotoConfig:
		r.Photos = append(r.Photos, m)
	default:
		r.Requests = append(r.Requests, c)
	}
	return tgbotapi.Message{}, nil
}

func (r *Recorder) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Requests = append(r.Requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// Last: текст последнего сообщения ("" если ничего не отправлено).
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Text
}

// To: сообщения, ушедшие в чат chatID.
func (r *Recorder) To(chatID int64) []tgbotapi.MessageConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, m := range r.Messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}
