// internal/ranking/notify/notifier.go

// Package notify emails the recruiter when a ranking run finishes. Delivery
// is best effort: a failed send is logged and never surfaces to the run.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"recruiter-backend/internal/aggregation"
	"recruiter-backend/internal/common/logger"
	"recruiter-backend/internal/models"
)

type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailNotifier sends a ranking-finished email to the job owner via SES.
type EmailNotifier struct {
	client    sesSender
	store     aggregation.Store
	fromEmail string
	logger    logger.Logger
}

func NewEmailNotifier(ctx context.Context, region, fromEmail string, store aggregation.Store, log logger.Logger) (*EmailNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &EmailNotifier{
		client:    ses.NewFromConfig(cfg),
		store:     store,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
	}, nil
}

// RunFinished emails the job owner about the run outcome. Errors are logged
// and swallowed.
func (n *EmailNotifier) RunFinished(ctx context.Context, jobID, runID string, state models.RunState) {
	log := n.logger.WithFields(map[string]interface{}{
		"jobId": jobID,
		"runId": runID,
	})

	email, title, err := n.ownerOf(ctx, jobID)
	if err != nil {
		log.WithError(err).Warn("skipping notification, owner lookup failed", nil)
		return
	}
	if email == "" {
		log.Debug("skipping notification, job owner has no email", nil)
		return
	}

	subject, body := composeEmail(title, state)
	_, err = n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.fromEmail),
		Destination: &types.Destination{ToAddresses: []string{email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		log.WithError(err).Warn("failed to send notification email", nil)
		return
	}
	log.Info("notification email sent", map[string]interface{}{"state": string(state)})
}

func (n *EmailNotifier) ownerOf(ctx context.Context, jobID string) (email, title string, err error) {
	snapshot, err := n.store.FetchJobWithApplications(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	owner, err := n.store.OwnerEmail(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	return owner, snapshot.Title, nil
}

func composeEmail(jobTitle string, state models.RunState) (subject, body string) {
	if state == models.StateDone {
		subject = fmt.Sprintf("Candidate ranking ready: %s", jobTitle)
		body = fmt.Sprintf(
			"The candidate ranking for your job posting %q has finished. "+
				"Log in to review the ranked applications.", jobTitle)
		return subject, body
	}
	subject = fmt.Sprintf("Candidate ranking failed: %s", jobTitle)
	body = fmt.Sprintf(
		"The candidate ranking for your job posting %q could not be completed. "+
			"You can retry from the job dashboard.", jobTitle)
	return subject, body
}
