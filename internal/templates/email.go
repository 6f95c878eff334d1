// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import "context"

// VerificationEmailData fills the email verification message.
type VerificationEmailData struct {
	AppName  string
	Username string
	Link     string
}

// EmailChangeData fills the email change confirmation message.
type EmailChangeData struct {
	AppName  string
	OldEmail string
	NewEmail string
	Link     string
}

// emailContent is what emailLayout renders around the confirmation link.
type emailContent struct {
	Heading string
	Intro   string
	Action  string
	Link    string
	AppName string
}

func verificationContent(ctx context.Context, d VerificationEmailData) emailContent {
	return emailContent{
		Heading: T(ctx, "email_verification_heading"),
		Intro: TData(ctx, "email_verification_intro", map[string]any{
			"AppName":  d.AppName,
			"Username": d.Username,
		}),
		Action:  T(ctx, "email_verification_action"),
		Link:    d.Link,
		AppName: d.AppName,
	}
}

func emailChangeContent(ctx context.Context, d EmailChangeData) emailContent {
	return emailContent{
		Heading: T(ctx, "email_change_heading"),
		Intro: TData(ctx, "email_change_intro", map[string]any{
			"AppName":  d.AppName,
			"OldEmail": d.OldEmail,
			"NewEmail": d.NewEmail,
		}),
		Action:  T(ctx, "email_change_action"),
		Link:    d.Link,
		AppName: d.AppName,
	}
}
