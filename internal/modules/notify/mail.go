package notify

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/pkg/mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// mailSender is the subset of *mail.Sender used here.
type mailSender interface {
	SendPublicationCreated(to []string, data mail.PublicationCreatedData) error
	SendEditRequested(to []string, data mail.EditRequestedData) error
	SendEditResolved(to []string, data mail.EditResolvedData) error
}

// MailNotifier emails the configured admin list.
type MailNotifier struct {
	sender    mailSender
	to        []string
	siteName  string
	reviewURL string
	logger    *zap.Logger
}

type MailOptions struct {
	AdminEmails []string
	SiteName    string
	ReviewURL   string
}

func NewMailNotifier(sender mailSender, opts MailOptions, logger *zap.Logger) *MailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailNotifier{
		sender:    sender,
		to:        opts.AdminEmails,
		siteName:  opts.SiteName,
		reviewURL: strings.TrimRight(opts.ReviewURL, "/"),
		logger:    logger.Named("MailNotifier"),
	}
}

func (n *MailNotifier) PublicationCreated(_ context.Context, pub *models.PublicationModel) {
	if len(n.to) == 0 {
		return
	}
	err := n.sender.SendPublicationCreated(n.to, mail.PublicationCreatedData{
		SiteName:  n.siteName,
		Title:     pub.Title,
		Tag:       string(pub.Tag),
		Author:    pub.AuthorID,
		BodyHTML:  renderMarkdown(pub.Body),
		ReviewURL: n.link(pub.ID),
	})
	n.report("publication created", pub.ID, err)
}

func (n *MailNotifier) EditRequested(_ context.Context, pub *models.PublicationModel, changed []string) {
	if len(n.to) == 0 {
		return
	}
	data := mail.EditRequestedData{
		SiteName:  n.siteName,
		Title:     pub.Title,
		Fields:    changed,
		ReviewURL: n.link(pub.ID),
	}
	if pub.PendingUpdate != nil && pub.PendingUpdate.Body != nil {
		data.BodyHTML = renderMarkdown(*pub.PendingUpdate.Body)
	}
	err := n.sender.SendEditRequested(n.to, data)
	n.report("edit requested", pub.ID, err)
}

func (n *MailNotifier) EditResolved(_ context.Context, pub *models.PublicationModel, entry *models.EditHistoryModel) {
	if len(n.to) == 0 || entry == nil {
		return
	}
	status := "aprobada"
	if entry.Status == models.EditRejected {
		status = "rechazada"
	}
	err := n.sender.SendEditResolved(n.to, mail.EditResolvedData{
		SiteName:  n.siteName,
		Title:     pub.Title,
		Status:    status,
		Version:   entry.Version,
		EditCount: pub.EditCount,
		MaxEdits:  pub.MaxEdits,
		Reason:    entry.Reason,
	})
	n.report("edit resolved", pub.ID, err)
}

func (n *MailNotifier) link(id string) string {
	if n.reviewURL == "" {
		return ""
	}
	return n.reviewURL + "/" + id
}

func (n *MailNotifier) report(event, id string, err error) {
	if err != nil {
		n.logger.Warn("notification failed", zap.String("event", event), zap.String("publication", id), zap.Error(err))
	}
}

// renderMarkdown converts publication text to HTML. Raw HTML in the source is not passed through.
func renderMarkdown(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
