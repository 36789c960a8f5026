package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat_relay/internal/broker"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Submitter delivers one push payload to a stored subscription.
type Submitter interface {
	Submit(ctx context.Context, subscription, payload []byte) error
}

// notification mirrors the payload shape the service worker on the client
// side expects.
type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
}

// Worker drains the push request queue and submits each request. Failures
// are logged and the request is acked anyway: push is best-effort and a
// poison message must not wedge the queue.
type Worker struct {
	broker    *broker.Client
	submitter Submitter
	log       *slog.Logger
}

func NewWorker(b *broker.Client, submitter Submitter, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{broker: b, submitter: submitter, log: log}
}

func (w *Worker) Start(ctx context.Context) {
	msgs, err := w.broker.ConsumePush()
	if err != nil {
		w.log.Error("failed to start push consumer", "error", err)
		return
	}

	go func() {
		for d := range msgs {
			var req Request
			if err := json.Unmarshal(d.Body, &req); err != nil {
				w.log.Warn("failed to unmarshal push request", "error", err)
				d.Ack(false)
				continue
			}

			payload, err := json.Marshal(notification{
				Title: fmt.Sprintf("New message from %s", req.Sender),
				Body:  req.Body,
				Icon:  "/icon-192x192.png",
				Badge: "/badge-72x72.png",
			})
			if err != nil {
				d.Ack(false)
				continue
			}

			if err := w.submitter.Submit(ctx, req.Subscription, payload); err != nil {
				w.log.Warn("push submission failed", "receiver", req.Receiver, "error", err)
			} else {
				w.log.Debug("push sent", "receiver", req.Receiver)
			}
			d.Ack(false)
		}
	}()

	<-ctx.Done()
}

// WebPushSubmitter submits via the Web Push protocol with VAPID
// authentication.
type WebPushSubmitter struct {
	publicKey  string
	privateKey string
	subject    string
}

func NewWebPushSubmitter(publicKey, privateKey, subject string) *WebPushSubmitter {
	return &WebPushSubmitter{publicKey: publicKey, privateKey: privateKey, subject: subject}
}

func (s *WebPushSubmitter) Submit(_ context.Context, subscription, payload []byte) error {
	if s.publicKey == "" || s.privateKey == "" {
		return fmt.Errorf("VAPID keys not configured")
	}

	var sub webpush.Subscription
	if err := json.Unmarshal(subscription, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	resp, err := webpush.SendNotification(payload, &sub, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
