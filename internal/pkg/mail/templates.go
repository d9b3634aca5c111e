package mail

import (
	"fmt"
	"html/template"
	"strings"
)

const layoutHead = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#fff;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border:1px solid rgb(14,165,233);border-radius:.25rem;margin:40px auto;padding:20px;width:550px">
    <tbody><tr><td>`

const layoutFoot = `
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">Este correo fue enviado automáticamente, por favor no responda.<br />©{{year}} {{.SiteName}}</p>
    </td></tr></tbody>
  </table>
</body>
</html>`

const publicationCreatedTpl = layoutHead + `
        <h1 style="color:#000;font-size:18px;font-weight:400;text-align:center;margin:30px 0">Nueva publicación: <strong>{{.Title}}</strong></h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">Tipo: <strong>{{.Tag}}</strong> · Autor: {{.Author}}</p>
        <div style="background-color:rgb(243,244,246);border-radius:.75rem;padding:0 1rem;font-size:13px;color:rgb(51,51,51)">{{.BodyHTML}}</div>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">La publicación requiere aprobación antes de mostrarse.</p>
        {{if .ReviewURL}}<p style="text-align:center;margin:32px 0"><a href="{{.ReviewURL}}" target="_blank" style="text-decoration:none;display:inline-block;padding:12px 20px;background-color:rgb(14,165,233);border-radius:.25rem;color:#fff;font-size:12px;font-weight:600">Revisar publicación</a></p>{{end}}` + layoutFoot

const editRequestedTpl = layoutHead + `
        <h1 style="color:#000;font-size:18px;font-weight:400;text-align:center;margin:30px 0">Solicitud de edición: <strong>{{.Title}}</strong></h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">Campos modificados:</p>
        <ul style="font-size:13px;color:rgb(51,51,51)">{{range .Fields}}<li>{{.}}</li>{{end}}</ul>
        {{if .BodyHTML}}<p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">Contenido propuesto:</p>
        <div style="background-color:rgb(243,244,246);border-radius:.75rem;padding:0 1rem;font-size:13px;color:rgb(51,51,51)">{{.BodyHTML}}</div>{{end}}
        {{if .ReviewURL}}<p style="text-align:center;margin:32px 0"><a href="{{.ReviewURL}}" target="_blank" style="text-decoration:none;display:inline-block;padding:12px 20px;background-color:rgb(14,165,233);border-radius:.25rem;color:#fff;font-size:12px;font-weight:600">Revisar solicitud</a></p>{{end}}` + layoutFoot

const editResolvedTpl = layoutHead + `
        <h1 style="color:#000;font-size:18px;font-weight:400;text-align:center;margin:30px 0">Edición {{.Status}}: <strong>{{.Title}}</strong></h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">Versión {{.Version}} · Ediciones usadas: {{.EditCount}} de {{.MaxEdits}}</p>
        {{if .Reason}}<p style="font-size:14px;line-height:24px;margin:16px 0;color:#000">Motivo: {{.Reason}}</p>{{end}}` + layoutFoot

// PublicationCreatedData feeds the new-publication admin notice.
type PublicationCreatedData struct {
	SiteName  string
	Title     string
	Tag       string
	Author    string
	BodyHTML  template.HTML
	ReviewURL string
}

// EditRequestedData feeds the edit-request admin notice.
type EditRequestedData struct {
	SiteName  string
	Title     string
	Fields    []string
	BodyHTML  template.HTML
	ReviewURL string
}

// EditResolvedData feeds the resolution notice.
type EditResolvedData struct {
	SiteName  string
	Title     string
	Status    string
	Version   int
	EditCount int
	MaxEdits  int
	Reason    string
}

func siteName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Komuness"
	}
	return name
}

// SendPublicationCreated notifies admins about a new publication awaiting approval.
func (s *Sender) SendPublicationCreated(to []string, data PublicationCreatedData) error {
	data.SiteName = siteName(data.SiteName)
	html, err := RenderTemplate(publicationCreatedTpl, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] Nueva publicación pendiente: %s", data.SiteName, data.Title),
		HTML:    html,
	})
}

// SendEditRequested notifies admins about a pending edit proposal.
func (s *Sender) SendEditRequested(to []string, data EditRequestedData) error {
	data.SiteName = siteName(data.SiteName)
	html, err := RenderTemplate(editRequestedTpl, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] Solicitud de edición: %s", data.SiteName, data.Title),
		HTML:    html,
	})
}

// SendEditResolved reports the outcome of a reviewed proposal.
func (s *Sender) SendEditResolved(to []string, data EditResolvedData) error {
	data.SiteName = siteName(data.SiteName)
	html, err := RenderTemplate(editResolvedTpl, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] Edición %s: %s", data.SiteName, data.Status, data.Title),
		HTML:    html,
	})
}
