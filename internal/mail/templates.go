package mail

import (
	"fmt"
	"html"
	"strings"
)

// Categories tag messages for the provider dashboards.
const (
	CategoryVerification = "email_verification"
	CategoryValidated    = "account_validated"
)

// VerificationCodeMessage asks a trainer to confirm their email address.
func VerificationCodeMessage(to, name, code string, validMinutes int) Message {
	greeting := greet(name)
	text := fmt.Sprintf(`%s

Merci pour votre inscription en tant que formateur.
Votre code de vérification est : %s

Ce code expire dans %d minutes.
`, greeting, code, validMinutes)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<p>%s</p>
<p>Merci pour votre inscription en tant que formateur.</p>
<p>Votre code de vérification est :</p>
<p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">%s</p>
<p>Ce code expire dans %d minutes.</p>
</div></body></html>`, html.EscapeString(greeting), html.EscapeString(code), validMinutes)

	return Message{
		To:       to,
		ToName:   name,
		Subject:  "Vérification de votre adresse email",
		HTML:     htmlBody,
		Text:     text,
		Category: CategoryVerification,
	}
}

// TrainerValidatedMessage announces a validated trainer account with its
// access code and an optional note from the administrator.
func TrainerValidatedMessage(to, name, accessCode, adminMessage string) Message {
	greeting := greet(name)
	var text strings.Builder
	fmt.Fprintf(&text, "%s\n\nVotre compte formateur a été validé.\n", greeting)
	fmt.Fprintf(&text, "Votre code d'accès est : %s\nIl vous sera demandé à chaque connexion.\n", accessCode)
	if adminMessage != "" {
		fmt.Fprintf(&text, "\nMessage de l'administrateur :\n%s\n", adminMessage)
	}

	note := ""
	if adminMessage != "" {
		note = fmt.Sprintf(`<p><strong>Message de l'administrateur :</strong></p><blockquote>%s</blockquote>`,
			html.EscapeString(adminMessage))
	}
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<p>%s</p>
<p>Votre compte formateur a été validé.</p>
<p>Votre code d'accès est :</p>
<p style="font-size: 24px; font-weight: bold;">%s</p>
<p>Il vous sera demandé à chaque connexion.</p>
%s
</div></body></html>`, html.EscapeString(greeting), html.EscapeString(accessCode), note)

	return Message{
		To:       to,
		ToName:   name,
		Subject:  "Votre compte formateur a été validé",
		HTML:     htmlBody,
		Text:     text.String(),
		Category: CategoryValidated,
	}
}

// LearnerValidatedMessage announces a validated learner account.
func LearnerValidatedMessage(to, name string) Message {
	greeting := greet(name)
	text := fmt.Sprintf("%s\n\nVotre compte apprenant a été validé. Vous pouvez maintenant vous connecter.\n", greeting)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<p>%s</p>
<p>Votre compte apprenant a été validé. Vous pouvez maintenant vous connecter.</p>
</div></body></html>`, html.EscapeString(greeting))

	return Message{
		To:       to,
		ToName:   name,
		Subject:  "Votre compte a été validé",
		HTML:     htmlBody,
		Text:     text,
		Category: CategoryValidated,
	}
}

func greet(name string) string {
	if name == "" {
		return "Bonjour,"
	}
	return "Bonjour " + name + ","
}
