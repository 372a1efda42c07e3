package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

// Processor runs a candidate through the optimization pipeline
type Processor interface {
	Process(ctx context.Context, req *core.Request) (*core.Result, error)
}

// Config tunes the SMTP listener
type Config struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	ProcessTimeout  time.Duration
}

// SMTPServer accepts alert mail and turns each message into an intel candidate.
// Messages are acknowledged as soon as they are queued; processing happens in the background.
type SMTPServer struct {
	processor Processor
	logger    *zap.Logger
	cfg       Config
	server    *smtp.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSMTPServer creates the ingest listener
func NewSMTPServer(processor Processor, cfg Config, logger *zap.Logger) *SMTPServer {
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 2 * time.Minute
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 10 * 1024 * 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &SMTPServer{
		processor: processor,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	server := smtp.NewServer(&smtpBackend{ingest: s})
	server.Addr = cfg.ListenAddress
	server.Domain = cfg.Domain
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = cfg.MaxMessageBytes
	server.MaxRecipients = 50
	s.server = server
	return s
}

// Start binds the listener and serves in the background
func (s *SMTPServer) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	s.logger.Info("SMTP ingest listening",
		zap.String("address", ln.Addr().String()),
		zap.String("domain", s.cfg.Domain))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop closes the listener and waits for queued messages until ctx expires
func (s *SMTPServer) Stop(ctx context.Context) error {
	if err := s.server.Close(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
		s.logger.Warn("Failed to close SMTP listener", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("SMTP ingest stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("SMTP ingest stopped with messages in flight: %w", ctx.Err())
	}
}

// Wait blocks until every queued message has been processed
func (s *SMTPServer) Wait() {
	s.wg.Wait()
}

// Ingest converts a raw message into one candidate per organization and queues them
func (s *SMTPServer) Ingest(sender string, organizations []string, raw []byte) error {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse email message: %w", err)
	}

	body, err := extractTextFromMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to extract text content: %w", err)
	}
	subject := strings.TrimSpace(decodeEncodedHeader(msg.Header.Get("Subject")))

	source := "unknown"
	if from := extractEmailAddress(sender); strings.Contains(from, "@") {
		source = strings.ToLower(from[strings.LastIndex(from, "@")+1:])
	}

	text := body
	if subject != "" {
		text = subject + "\n\n" + body
	}

	for _, org := range organizations {
		req := &core.Request{
			OrganizationID: org,
			Feature:        core.FeatureIntel,
			Params:         map[string]any{"source": source, "subject": subject},
			Text:           text,
		}
		s.dispatch(req)
	}
	return nil
}

func (s *SMTPServer) dispatch(req *core.Request) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ProcessTimeout)
		defer cancel()

		result, err := s.processor.Process(ctx, req)
		if err != nil {
			s.logger.Error("Failed to process alert mail",
				zap.String("organization_id", req.OrganizationID),
				zap.Any("source", req.Params["source"]),
				zap.Error(err))
			return
		}
		action := ""
		if result != nil && result.Decision != nil {
			action = string(result.Decision.Action)
		}
		s.logger.Info("Processed alert mail",
			zap.String("organization_id", req.OrganizationID),
			zap.Any("source", req.Params["source"]),
			zap.String("action", action))
	}()
}

type smtpBackend struct {
	ingest *SMTPServer
}

func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{ingest: b.ingest}, nil
}

type smtpSession struct {
	ingest        *SMTPServer
	sender        string
	organizations []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.organizations = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt only accepts intel+<org>@<domain>
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	org, err := ParseRecipient(to, s.ingest.cfg.Domain)
	if err != nil {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "No such alert mailbox",
		}
	}
	for _, existing := range s.organizations {
		if existing == org {
			return nil
		}
	}
	s.organizations = append(s.organizations, org)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.ingest.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	if err := s.ingest.Ingest(s.sender, s.organizations, raw); err != nil {
		s.ingest.logger.Warn("Rejecting alert mail",
			zap.String("sender", s.sender),
			zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Message could not be parsed",
		}
	}
	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
