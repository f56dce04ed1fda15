package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/gcp"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// MaxMulticastTokens is the FCM limit for one multicast request.
const MaxMulticastTokens = 500

var errNotInitialized = errors.New("push client not initialized")

// Message is the provider-neutral push payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Result is the delivery outcome for one token.
type Result struct {
	Token     string
	MessageID string
	Err       error
	// Permanent marks tokens the provider will never accept again.
	Permanent bool
}

type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client sends multicast pushes through Firebase Cloud Messaging.
type Client struct {
	fcm       multicaster
	batchSize int
	enabled   bool
}

// NewClient builds the FCM client. A disabled config yields a client that drops every send.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PushConfig, logg *logger.Logger) (*Client, error) {
	c := &Client{batchSize: clampBatch(cfg.BatchSize), enabled: cfg.Enabled}
	if !cfg.Enabled {
		if logg != nil {
			logg.Warn(ctx, "push delivery disabled")
		}
		return c, nil
	}
	if strings.TrimSpace(gcpCfg.ProjectID) == "" {
		return nil, errors.New("gcp project id is required for push")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: gcpCfg.ProjectID}, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating firebase app: %w", err)
	}
	fcm, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating fcm client: %w", err)
	}
	c.fcm = fcm

	if logg != nil {
		logg.Info(logg.WithField(ctx, "batch_size", c.batchSize), "fcm client initialized")
	}
	return c, nil
}

func clampBatch(size int) int {
	if size <= 0 || size > MaxMulticastTokens {
		return MaxMulticastTokens
	}
	return size
}

// SendMulticast delivers msg to every token, chunking requests at the batch size.
// The returned slice holds one result per token in input order. A transport
// error aborts the remaining chunks and is returned with the partial results.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]Result, error) {
	if c == nil {
		return nil, errNotInitialized
	}
	if len(tokens) == 0 || !c.enabled {
		return nil, nil
	}
	if c.fcm == nil {
		return nil, errNotInitialized
	}

	results := make([]Result, 0, len(tokens))
	for start := 0; start < len(tokens); start += c.batchSize {
		end := start + c.batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		resp, err := c.fcm.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       chunk,
			Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
			Data:         msg.Data,
		})
		if err != nil {
			return results, fmt.Errorf("fcm multicast: %w", err)
		}
		for i, token := range chunk {
			result := Result{Token: token}
			if resp == nil || i >= len(resp.Responses) || resp.Responses[i] == nil {
				result.Err = errors.New("missing fcm response")
				results = append(results, result)
				continue
			}
			sent := resp.Responses[i]
			if sent.Success {
				result.MessageID = sent.MessageID
			} else {
				result.Err = sent.Error
				result.Permanent = IsPermanent(sent.Error)
			}
			results = append(results, result)
		}
	}
	return results, nil
}

// IsPermanent reports whether FCM rejected the token for good.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}
