package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
)

// MailNotifier delivers stakeholder emails through the mail relay. When the
// relay URL or token is missing, the notifier is disabled and every send is a
// logged no-op, which keeps local development working without a relay.
type MailNotifier struct {
	relayURL string
	token    string
	client   *http.Client
	enabled  bool
}

// NewMailNotifier creates a new mail notifier
func NewMailNotifier(relayURL, token string) *MailNotifier {
	enabled := relayURL != "" && token != ""
	if !enabled {
		log.Println("⚠️ Mail relay not configured, notifications disabled")
	}
	return &MailNotifier{
		relayURL: relayURL,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
		enabled:  enabled,
	}
}

type mailPayload struct {
	Recipients []string `json:"recipients"`
	CC         []string `json:"cc,omitempty"`
	Subject    string   `json:"subject"`
	HTMLBody   string   `json:"html_body"`
}

// NotifyPendingApproval tells the customer's checkers a request awaits them.
func (n *MailNotifier) NotifyPendingApproval(ctx context.Context, recipients []string, request *models.ApprovalRequest) error {
	subject := fmt.Sprintf("Approval required: %s request #%d", request.ActionType, request.ID)
	body := fmt.Sprintf(
		"<p>A new <b>%s</b> request (#%d) is awaiting your review.</p>",
		request.ActionType, request.ID)
	return n.send(ctx, &mailPayload{Recipients: recipients, Subject: subject, HTMLBody: body})
}

// NotifyReadyToPrint tells the maker their approved instruction letter is
// ready.
func (n *MailNotifier) NotifyReadyToPrint(ctx context.Context, recipient string, request *models.ApprovalRequest, instruction *models.LGInstruction) error {
	subject := fmt.Sprintf("Instruction %s ready to print", instruction.Serial)
	body := fmt.Sprintf(
		"<p>Your <b>%s</b> request (#%d) was approved.</p><p>Instruction <b>%s</b> is ready to print.</p>",
		request.ActionType, request.ID, instruction.Serial)
	return n.send(ctx, &mailPayload{Recipients: []string{recipient}, Subject: subject, HTMLBody: body})
}

// NotifyLGAction tells the record's stakeholders a direct action happened.
// Instruction is nil for actions that emit no letter (amendments).
func (n *MailNotifier) NotifyLGAction(ctx context.Context, recipients []string, lg *models.LGRecord, instruction *models.LGInstruction) error {
	var subject, body string
	if instruction != nil {
		subject = fmt.Sprintf("LG %s: %s instruction issued", lg.BusinessNumber, instruction.Type)
		body = fmt.Sprintf(
			"<p>Instruction <b>%s</b> (%s) was issued on guarantee <b>%s</b>.</p>",
			instruction.Serial, instruction.Type, lg.BusinessNumber)
	} else {
		subject = fmt.Sprintf("LG %s amended", lg.BusinessNumber)
		body = fmt.Sprintf("<p>Guarantee <b>%s</b> was amended.</p>", lg.BusinessNumber)
	}
	return n.send(ctx, &mailPayload{Recipients: recipients, Subject: subject, HTMLBody: body})
}

// NotifyExpiryReminder warns stakeholders a guarantee is nearing expiry.
func (n *MailNotifier) NotifyExpiryReminder(ctx context.Context, recipients []string, lg *models.LGRecord) error {
	subject := fmt.Sprintf("LG %s expires on %s", lg.BusinessNumber, lg.ExpiryDate.Format(dateLayout))
	body := fmt.Sprintf(
		"<p>Guarantee <b>%s</b> (%s) expires on <b>%s</b>. Extend or release it before then.</p>",
		lg.BusinessNumber, lg.Amount.StringFixed(2), lg.ExpiryDate.Format(dateLayout))
	return n.send(ctx, &mailPayload{Recipients: recipients, Subject: subject, HTMLBody: body})
}

func (n *MailNotifier) send(ctx context.Context, payload *mailPayload) error {
	if !n.enabled {
		log.Printf("📧 [disabled] %s -> %v", payload.Subject, payload.Recipients)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.relayURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail relay error: %s", string(respBody))
	}
	return nil
}
