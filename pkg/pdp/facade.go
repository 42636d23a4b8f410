// Package pdp implements C8: the Facade that bootstraps every other
// component from a single Config and exposes the authorize() entry point.
// It owns one instance graph per process — there is no package-level
// singleton — and is safe for concurrent Authorize calls.
package pdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cedar-policy/cedar-go/types"
	"github.com/google/uuid"

	"github.com/cedar-pdp/pdp/pkg/authorizer"
	"github.com/cedar-pdp/pdp/pkg/entities"
	"github.com/cedar-pdp/pdp/pkg/jwks"
	"github.com/cedar-pdp/pdp/pkg/jwtvalidator"
	"github.com/cedar-pdp/pdp/pkg/logger"
	"github.com/cedar-pdp/pdp/pkg/meter"
	"github.com/cedar-pdp/pdp/pkg/pdperrors"
	"github.com/cedar-pdp/pdp/pkg/policystore"
)

// Facade wires together every component into the single instance graph an
// application embeds. Construct one with New and reuse it across calls.
type Facade struct {
	id  string
	cfg Config

	store *policystore.PolicyStore
	// keys is the default, caller-driven key service: Lookup misses are
	// refreshed and retried explicitly by tokens.go on KeyNotFound.
	keys *jwks.Service
	// autoKeys is non-nil only when jwt_config.key_refresh.auto_poll is
	// set; it replaces keys as the Lookup source and refreshes issuer
	// keysets on its own background schedule instead.
	autoKeys   *jwks.AutoRefreshService
	validator  *jwtvalidator.Validator
	builder    *entities.Builder
	authorizer *authorizer.Authorizer
	sink       logger.Sink
	meter      *meter.Meter
}

// New bootstraps a Facade from cfg: loads the policy store, constructs the
// key service, JWT validator, entity builder, and authorizer core, and
// selects the decision-log sink.
func New(ctx context.Context, cfg Config) (*Facade, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	store, err := loadPolicyStore(ctx, cfg.PolicyStore, client)
	if err != nil {
		return nil, err
	}

	keys := jwks.NewService(client)

	var autoKeys *jwks.AutoRefreshService
	if cfg.JWT.KeyRefresh.AutoPoll {
		autoKeys, err = jwks.NewAutoRefreshService(ctx, client)
		if err != nil {
			return nil, pdperrors.Wrap(pdperrors.KindInitialization, "starting auto-refreshing key cache", err)
		}
		for _, issuer := range store.Issuers {
			if issuer.OpenIDConfigurationEndpoint == "" {
				continue
			}
			if regErr := autoKeys.Register(ctx, client, issuer.ID, issuer.OpenIDConfigurationEndpoint); regErr != nil {
				logger.Warnw("registering issuer with auto-refresh key cache failed", "issuer", issuer.ID, "error", regErr)
			}
		}
	}

	var validator *jwtvalidator.Validator
	if !cfg.JWT.Disabled {
		validator = jwtvalidator.New(jwtvalidator.Config{
			Algorithms:     cfg.JWT.Algorithms,
			RequiredClaims: cfg.JWT.RequiredClaims,
			Leeway:         cfg.JWT.Leeway,
		})
	}

	rollingCap := cfg.RollingGaugeCapacity
	if rollingCap <= 0 {
		rollingCap = 100
	}

	operator := authorizer.Operator(cfg.UserWorkloadOperator)

	f := &Facade{
		id:         uuid.NewString(),
		cfg:        cfg,
		store:      store,
		keys:       keys,
		autoKeys:   autoKeys,
		validator:  validator,
		builder:    entities.NewBuilder(cfg.Mapping.toEntitiesConfig(), store.SchemaJSON, rootNamespace(store.SchemaJSON)),
		authorizer: authorizer.New(store.Policies, operator),
		sink:       logger.NewSink(cfg.LogType),
		meter:      meter.New(rollingCap),
	}

	logger.Infow("pdp initialized", "pdp_id", f.id, "policy_store_id", store.ID, "policy_store_version", store.Version)
	return f, nil
}

// Meter exposes the request/JWT counters and gauges for scraping or
// Prometheus registration (see pkg/meter.NewPromCollector).
func (f *Facade) Meter() *meter.Meter { return f.meter }

// DecisionLogSink exposes the active sink, e.g. so a caller using the
// "lock" log_type can retrieve retained records via its Records() method.
func (f *Facade) DecisionLogSink() logger.Sink { return f.sink }

// Authorize evaluates req against the bootstrapped policy store and
// returns the combined decision, or a *pdperrors.Error describing what
// stage of the pipeline failed. A failed call still emits a terminal
// decision-log entry with decision=Deny.
func (f *Facade) Authorize(ctx context.Context, req Request) (*AuthorizeResult, error) {
	start := time.Now()
	reqID := uuid.NewString()

	result, built, buildErr := f.run(ctx, req)

	elapsedMs := float64(time.Since(start)) / float64(time.Millisecond)
	f.meter.RecordAuthzRequest(buildErr == nil && result != nil && result.Decision == "Allow", elapsedMs)
	f.logDecision(reqID, req, result, built, buildErr, elapsedMs)

	if buildErr != nil {
		return nil, buildErr
	}
	return result, nil
}

// run is Authorize's pipeline, separated so Authorize can always emit a
// decision log regardless of where the pipeline stops. The *entities.Result
// return value is used only for decision-log claim projection; it may be
// non-nil even when err is non-nil (e.g. a WorkloadRequestValidation
// failure still has a built entity set worth projecting).
func (f *Facade) run(ctx context.Context, req Request) (*AuthorizeResult, *entities.Result, error) {
	entityType, namespace, actionID, err := parseActionUID(req.Action)
	if err != nil {
		return nil, nil, pdperrors.Wrap(pdperrors.KindAction, "unparseable action uid "+req.Action, err)
	}

	tokens, err := f.validateTokens(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	ctxRecord, err := buildContext(f.store.SchemaJSON, namespace, actionID, req.Context, nil)
	if err != nil {
		return nil, nil, pdperrors.Wrap(pdperrors.KindCreateContext, "context failed schema validation", err)
	}

	built, err := f.builder.Build(
		f.store.Issuers,
		entities.Tokens{Access: tokens.access, ID: tokens.id, Userinfo: tokens.userinfo},
		entities.ResourceData{ID: req.Resource.ID, Type: req.Resource.Type, Attributes: req.Resource.Attributes},
		f.cfg.UseWorkloadPrincipal,
		f.cfg.UseUserPrincipal,
	)
	if err != nil {
		return nil, nil, err
	}

	actionUID := types.NewEntityUID(types.EntityType(entityType), types.String(actionID))
	resourceUID := types.NewEntityUID(types.EntityType(req.Resource.Type), types.String(req.Resource.ID))

	evalResult, err := f.authorizer.Authorize(authorizer.Request{
		Entities: built.Entities,
		Action:   actionUID,
		Resource: resourceUID,
		Context:  ctxRecord,
		Workload: built.Workload,
		User:     built.User,
	})
	if err != nil {
		return nil, built, err
	}

	if evalResult.Workload.State == authorizer.ViewError {
		return nil, built, pdperrors.Wrap(pdperrors.KindWorkloadRequestValidation, "workload view failed", evalResult.Workload.Err).
			WithPolicyIDs(evalResult.Workload.ErrorPolicyID)
	}
	if evalResult.User.State == authorizer.ViewError {
		return nil, built, pdperrors.Wrap(pdperrors.KindUserRequestValidation, "user view failed", evalResult.User.Err).
			WithPolicyIDs(evalResult.User.ErrorPolicyID)
	}

	return f.toWireResult(evalResult), built, nil
}

func (f *Facade) toWireResult(r *authorizer.Result) *AuthorizeResult {
	out := &AuthorizeResult{Decision: decisionString(r.Allowed)}
	if r.Workload.State != authorizer.ViewDisabled {
		out.Workload = viewResultWire(r.Workload)
	}
	if r.User.State != authorizer.ViewDisabled {
		out.User = viewResultWire(r.User)
	}
	return out
}

func viewResultWire(vr *authorizer.ViewResult) *ViewResult {
	diag := Diagnostics{Reason: vr.ReasonPolicyID}
	for _, id := range vr.ErrorPolicyID {
		diag.Errors = append(diag.Errors, ErrorEntry{PolicyID: id, Message: "policy evaluation error"})
	}
	return &ViewResult{Decision: decisionString(vr.State == authorizer.ViewAllow), Diagnostics: diag}
}

func decisionString(allow bool) string {
	if allow {
		return "Allow"
	}
	return "Deny"
}

// rootNamespace returns the single top-level namespace key in schemaJSON,
// or "" if the schema declares the unnamed namespace (or more than one
// namespace — a multi-namespace schema requires callers to qualify entity
// types themselves, which the Non-goals leave out of scope).
func rootNamespace(schemaJSON []byte) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(schemaJSON, &probe); err != nil || len(probe) != 1 {
		return ""
	}
	for k := range probe {
		return k
	}
	return ""
}

func formatEntityUID(entityType, id string) string {
	return fmt.Sprintf("%s::%q", entityType, id)
}
