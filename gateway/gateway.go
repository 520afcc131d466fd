// Package gateway runs every request through a fixed pipeline of security
// stages and composes their verdicts into one allow or deny decision before
// handing the payload to the business-logic collaborator.
package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
	"github.com/healthassess/secure-gateway/services/privacy"
	"github.com/healthassess/secure-gateway/services/ratelimit"
	"github.com/healthassess/secure-gateway/services/threat"
	"github.com/healthassess/secure-gateway/services/token"
)

// State names where in the pipeline a request currently is, or where it
// terminated.
type State string

const (
	StateReceived        State = "received"
	StateThreatScan      State = "threat_scan"
	StateRateCheck       State = "rate_check"
	StateAuthCheck       State = "auth_check"
	StatePermissionCheck State = "permission_check"
	StateInputValidate   State = "input_validate"
	StateDispatch        State = "dispatch"
	StateAuditLog        State = "audit_log"
	StateResponded       State = "responded"
)

// SecurityHeaders are attached to every successful response.
var SecurityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
}

// Dispatcher is the external business-logic collaborator. Its result is
// opaque to the gateway.
type Dispatcher interface {
	Dispatch(ctx context.Context, claims *token.Claims, req *Request) (interface{}, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, claims *token.Claims, req *Request) (interface{}, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, claims *token.Claims, req *Request) (interface{}, error) {
	return f(ctx, claims, req)
}

// Request is one inbound request as the pipeline sees it.
type Request struct {
	Method    string
	Path      string
	SourceIP  string
	UserAgent string

	// Credential is the raw bearer credential, empty when absent.
	Credential string

	// Payload is the decoded request body, nil for bodyless requests.
	Payload interface{}

	// Protected marks routes that require a verified credential.
	Protected bool
	// RequiredPermission, when set, must appear in the credential's
	// permission snapshot. Implies Protected.
	RequiredPermission models.Permission

	// WriteOperation enables the structural validation stage.
	WriteOperation bool
	// ValidateInput performs structural validation of the typed payload.
	// A returned error blocks the request as ValidationFailed.
	ValidateInput func() error

	// ResourceClass, when set, makes the request a classified-resource
	// access: it is always audited, success or failure.
	ResourceClass string
	Action        string
	Purpose       string

	// Dispatch overrides the gateway's default collaborator for this
	// request. Handlers use it to bind the operation being served.
	Dispatch DispatcherFunc
}

// Result is the pipeline outcome. Err is nil exactly when the request made
// it to RESPONDED; State then names the terminal stage otherwise.
type Result struct {
	State    State
	Claims   *token.Claims
	Output   interface{}
	Warnings []models.Violation
	Headers  map[string]string
	Err      error
}

// Gateway owns the security services and runs the pipeline.
type Gateway struct {
	tokens     *token.Service
	limiter    *ratelimit.Service
	scanner    *threat.Scanner
	monitor    *threat.Monitor
	compliance *privacy.Compliance
	dispatcher Dispatcher
	logger     *zap.Logger
}

// New creates a gateway over explicitly constructed services.
func New(
	tokens *token.Service,
	limiter *ratelimit.Service,
	scanner *threat.Scanner,
	monitor *threat.Monitor,
	compliance *privacy.Compliance,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		tokens:     tokens,
		limiter:    limiter,
		scanner:    scanner,
		monitor:    monitor,
		compliance: compliance,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Execute runs the request through the pipeline. Stages run in a fixed
// order and any stage may terminate the request with a typed error. Charges
// already applied when a stage fails (rate-limit slots, threat events,
// audit entries) are never rolled back.
func (g *Gateway) Execute(ctx context.Context, req *Request) *Result {
	res := &Result{State: StateReceived}

	principalID := ""
	finish := func(err error) *Result {
		res.Err = err
		if req.ResourceClass != "" {
			auditState := res.State
			res.State = StateAuditLog
			auditErr := g.compliance.LogAccess(ctx, principalID, req.Action, req.ResourceClass, "", req.Purpose, req.SourceIP, err == nil)
			if auditErr != nil {
				if res.Err == nil {
					// Fail closed: an unaudited success must not be served.
					res.Err = auditErr
				}
				return res
			}
			if res.Err != nil {
				res.State = auditState
			}
		}
		if res.Err == nil {
			res.State = StateResponded
			res.Headers = SecurityHeaders
		}
		return res
	}

	// THREAT_SCAN
	res.State = StateThreatScan
	g.monitor.AnalyzeRequest(req.SourceIP, req.UserAgent, req.Path, "")
	scan := g.scanner.ScanPayload(req.Payload)
	if scan.Blocking() {
		worst := worstViolation(scan.Violations)
		g.monitor.Record(models.ThreatEvent{
			Category:  worst.Type,
			Level:     worst.Level,
			SourceIP:  req.SourceIP,
			UserAgent: req.UserAgent,
			Endpoint:  req.Path,
			Details:   map[string]interface{}{"field": worst.Field},
			Blocked:   true,
		})
		return finish(services.ThreatDetectedError(string(worst.Type), string(worst.Level)))
	}
	// Residual low/medium matches ride along as warnings.
	res.Warnings = scan.Violations

	// RATE_CHECK
	res.State = StateRateCheck
	decision, err := g.limiter.Check(ctx, req.SourceIP)
	if err != nil {
		return finish(err)
	}
	if !decision.Allowed {
		window := string(decision.ViolatedWindow)
		if window == "" {
			window = decision.Reason
		}
		g.monitor.Record(models.ThreatEvent{
			Category:  models.ThreatRateLimitExceeded,
			Level:     models.ThreatLevelHigh,
			SourceIP:  req.SourceIP,
			UserAgent: req.UserAgent,
			Endpoint:  req.Path,
			Details:   map[string]interface{}{"reason": decision.Reason},
			Blocked:   true,
		})
		return finish(services.RateLimitedError(window, int(decision.RetryAfter.Seconds())))
	}

	// AUTH_CHECK
	if req.Protected || req.RequiredPermission != "" {
		res.State = StateAuthCheck
		claims, err := g.tokens.VerifyAccess(req.Credential)
		if err != nil {
			return finish(err)
		}
		res.Claims = claims
		principalID = claims.Subject

		// PERMISSION_CHECK
		if req.RequiredPermission != "" {
			res.State = StatePermissionCheck
			if !claims.HasPermission(req.RequiredPermission) {
				g.logger.Warn("permission denied",
					zap.String("principal_id", claims.Subject),
					zap.String("role", claims.Role),
					zap.String("permission", string(req.RequiredPermission)))
				return finish(services.ErrInsufficientPermission)
			}
		}
	}

	// INPUT_VALIDATE
	if req.WriteOperation && req.ValidateInput != nil {
		res.State = StateInputValidate
		if err := req.ValidateInput(); err != nil {
			return finish(err)
		}
	}

	// DISPATCH
	res.State = StateDispatch
	dispatcher := g.dispatcher
	if req.Dispatch != nil {
		dispatcher = req.Dispatch
	}
	output, err := dispatcher.Dispatch(ctx, res.Claims, req)
	if err != nil {
		return finish(err)
	}
	res.Output = output

	return finish(nil)
}

func worstViolation(violations []models.Violation) models.Violation {
	rank := map[models.ThreatLevel]int{
		models.ThreatLevelLow:      0,
		models.ThreatLevelMedium:   1,
		models.ThreatLevelHigh:     2,
		models.ThreatLevelCritical: 3,
	}
	worst := violations[0]
	for _, v := range violations[1:] {
		if rank[v.Level] > rank[worst.Level] {
			worst = v
		}
	}
	return worst
}
