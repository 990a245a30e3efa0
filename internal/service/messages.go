package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/project-portal/internal/model"
	"github.com/iliyamo/project-portal/internal/queue"
	"github.com/iliyamo/project-portal/internal/repository"
)

const maxMessageLen = 5000

// MessageService manages the client/developer thread on a project.
type MessageService struct {
	Projects       *repository.ProjectRepo
	Dispatch       *Dispatcher
	DeveloperEmail string
	Now            func() time.Time
}

func NewMessageService(projects *repository.ProjectRepo, d *Dispatcher, developerEmail string) *MessageService {
	return &MessageService{
		Projects:       projects,
		Dispatch:       d,
		DeveloperEmail: developerEmail,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

// Post appends a message from the given side and notifies the other side.
func (s *MessageService) Post(ctx context.Context, projectID string, from model.Sender, text string) (*model.Project, model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.Message{}, fmt.Errorf("%w: message required", repository.ErrValidation)
	}
	if len(text) > maxMessageLen {
		return nil, model.Message{}, fmt.Errorf("%w: message longer than %d bytes", repository.ErrValidation, maxMessageLen)
	}
	if from != model.FromClient && from != model.FromDeveloper {
		return nil, model.Message{}, fmt.Errorf("%w: unknown sender %q", repository.ErrValidation, from)
	}

	msg := model.Message{ID: uuid.NewString(), From: from, Message: text, Timestamp: s.Now()}
	p, err := s.Projects.Mutate(ctx, projectID, func(p *model.Project) (bool, error) {
		p.Messages = append(p.Messages, msg)
		return true, nil
	})
	if err != nil {
		return nil, model.Message{}, err
	}

	ev := queue.NotificationEvent{ProjectID: p.ID, Data: map[string]string{"message": text, "name": p.Customer.Name}}
	if from == model.FromClient {
		ev.Type, ev.To = queue.EventDeveloperNewMessage, s.DeveloperEmail
	} else {
		ev.Type, ev.To = queue.EventClientNewMessage, p.Customer.Email
	}
	s.Dispatch.Dispatch(ev)
	return p, msg, nil
}

// PostClientMessage appends a message from the customer.
func (s *MessageService) PostClientMessage(ctx context.Context, projectID, text string) (*model.Project, model.Message, error) {
	return s.Post(ctx, projectID, model.FromClient, text)
}

// PostDeveloperMessage appends a message from the developer.
func (s *MessageService) PostDeveloperMessage(ctx context.Context, projectID, text string) (*model.Project, model.Message, error) {
	return s.Post(ctx, projectID, model.FromDeveloper, text)
}

// MarkMessagesRead flips read on every unread message sent by from and returns how
// many changed.  Nothing is written when there is nothing to flip.
func (s *MessageService) MarkMessagesRead(ctx context.Context, projectID string, from model.Sender) (*model.Project, int, error) {
	n := 0
	p, err := s.Projects.Mutate(ctx, projectID, func(p *model.Project) (bool, error) {
		for i := range p.Messages {
			if p.Messages[i].From == from && !p.Messages[i].Read {
				p.Messages[i].Read = true
				n++
			}
		}
		return n > 0, nil
	})
	return p, n, err
}
