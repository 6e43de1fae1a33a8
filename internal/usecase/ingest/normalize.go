package ingest

import (
	"encoding/json"
	"strings"

	"github.com/google/go-github/v68/github"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
)

// Disposition is the classification outcome of a verified delivery.
type Disposition int

const (
	DispositionIgnored Disposition = iota
	DispositionPing
	DispositionAccepted
)

func (d Disposition) String() string {
	switch d {
	case DispositionPing:
		return "ping"
	case DispositionAccepted:
		return "accepted"
	default:
		return "ignored"
	}
}

// Classification is the result of Normalize. Event is set only when
// Disposition is DispositionAccepted.
type Classification struct {
	Disposition Disposition
	Event       review.PullRequestEvent
	Reason      string
	HookID      int64
}

// Normalize turns a raw GitHub delivery into a Classification. A nil error
// means the delivery was understood (accepted, ping, or ignored); malformed
// pull_request payloads return an error matching review.ErrValidation.
func Normalize(eventType string, payload []byte) (Classification, error) {
	switch eventType {
	case review.EventPing:
		return normalizePing(payload), nil
	case review.EventPullRequest:
		return normalizePullRequest(payload)
	default:
		return Classification{
			Disposition: DispositionIgnored,
			Reason:      "unsupported event " + eventType,
		}, nil
	}
}

func normalizePing(payload []byte) Classification {
	out := Classification{Disposition: DispositionPing}

	var ping github.PingEvent
	if err := json.Unmarshal(payload, &ping); err == nil {
		out.HookID = ping.GetHookID()
	}
	return out
}

func normalizePullRequest(payload []byte) (Classification, error) {
	var raw github.PullRequestEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Classification{}, errs.Mark(errs.Wrap(err, "decode pull_request payload"), review.ErrMalformedPayload)
	}

	installationID := raw.GetInstallation().GetID()
	if installationID <= 0 {
		return Classification{}, review.ErrMissingInstallation
	}

	action := raw.GetAction()
	status, ok := review.StatusForAction(action)
	if !ok {
		return Classification{
			Disposition: DispositionIgnored,
			Reason:      "unsupported action " + action,
		}, nil
	}

	repo := raw.GetRepo()
	pr := raw.GetPullRequest()

	owner, err := requireString(repo.GetOwner().GetLogin(), "repository.owner.login")
	if err != nil {
		return Classification{}, err
	}
	name, err := requireString(repo.GetName(), "repository.name")
	if err != nil {
		return Classification{}, err
	}
	if pr.GetNumber() <= 0 {
		return Classification{}, &review.MissingFieldError{Field: "pull_request.number"}
	}
	headSHA, err := requireString(pr.GetHead().GetSHA(), "pull_request.head.sha")
	if err != nil {
		return Classification{}, err
	}

	return Classification{
		Disposition: DispositionAccepted,
		Event: review.PullRequestEvent{
			EventType:      review.EventPullRequest,
			Sender:         raw.GetSender().GetLogin(),
			InstallationID: installationID,
			Owner:          owner,
			Repo:           name,
			PRNumber:       pr.GetNumber(),
			BaseSHA:        pr.GetBase().GetSHA(),
			HeadSHA:        headSHA,
			Action:         review.Action(action),
			Status:         status,
		},
	}, nil
}

func requireString(value string, field string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", &review.MissingFieldError{Field: field}
	}
	return value, nil
}
