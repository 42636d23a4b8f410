package pdp

import (
	"encoding/json"

	"github.com/cedar-pdp/pdp/pkg/auth"
	"github.com/cedar-pdp/pdp/pkg/entities"
	"github.com/cedar-pdp/pdp/pkg/jwtvalidator"
	"github.com/cedar-pdp/pdp/pkg/logger"
)

// logDecision emits the terminal decision-log entry for one Authorize call,
// whether it succeeded or failed at some earlier stage. Ordering: this
// always runs after the decision (or failure) is final and before Authorize
// returns, preserving request order.
func (f *Facade) logDecision(reqID string, req Request, result *AuthorizeResult, built *entities.Result, buildErr error, elapsedMs float64) {
	rec := logger.DecisionRecord{
		ID:                 reqID,
		PDPID:              f.id,
		ApplicationName:    f.cfg.ApplicationName,
		PolicyStoreID:      f.store.ID,
		PolicyStoreVersion: f.store.Version,
		Action:             req.Action,
		ResourceUID:        formatEntityUID(req.Resource.Type, req.Resource.ID),
		ElapsedMs:          elapsedMs,
	}

	if buildErr != nil {
		rec.Decision = "Deny"
		rec.Errors = []string{buildErr.Error()}
	} else {
		rec.Decision = result.Decision
		if result.Workload != nil {
			rec.Workload = &logger.ViewLogEntry{
				Decision:       result.Workload.Decision,
				ReasonPolicyID: result.Workload.Diagnostics.Reason,
				ErrorPolicyID:  errorPolicyIDs(result.Workload.Diagnostics.Errors),
			}
		}
		if result.User != nil {
			rec.User = &logger.ViewLogEntry{
				Decision:       result.User.Decision,
				ReasonPolicyID: result.User.Diagnostics.Reason,
				ErrorPolicyID:  errorPolicyIDs(result.User.Diagnostics.Errors),
			}
		}
	}

	rec.Claims = f.projectClaims(built)
	rec.Tokens = tokenLogInfo(req, f.cfg.DecisionLog.DefaultJWTID)
	f.sink.Write(rec)
}

// projectClaims extracts the configured decision_log_workload_claims /
// decision_log_user_claims attribute paths from the built entity set.
func (f *Facade) projectClaims(built *entities.Result) map[string]any {
	if built == nil {
		return nil
	}
	out := map[string]any{}
	if built.Workload != nil {
		if ent, ok := built.Entities[*built.Workload]; ok {
			for k, v := range projectEntityClaims(ent, f.cfg.DecisionLog.WorkloadClaims) {
				out["workload."+k] = v
			}
		}
	}
	if built.User != nil {
		if ent, ok := built.Entities[*built.User]; ok {
			for k, v := range projectEntityClaims(ent, f.cfg.DecisionLog.UserClaims) {
				out["user."+k] = v
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func errorPolicyIDs(errs []ErrorEntry) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.PolicyID
	}
	return out
}

// tokenLogInfo records which tokens were presented, without leaking their
// raw compact form into the log; issuer/subject/jti are filled in only if
// the token's claims are decodable. defaultJWTID sets JTI to "" when the
// jti claim is absent; since TokenLogInfo.JTI is omitempty, an empty jti is
// left out of the JSON record whether or not defaultJWTID is set.
func tokenLogInfo(req Request, defaultJWTID bool) []logger.TokenLogInfo {
	var out []logger.TokenLogInfo
	add := func(kind auth.TokenKind, raw string) {
		if raw == "" {
			return
		}
		info := logger.TokenLogInfo{Kind: string(kind)}
		if iss, claims, err := jwtvalidator.DecodeUnverified(raw); err == nil {
			info.Issuer = iss
			if sub, ok := claims["sub"].(string); ok {
				info.Subject = sub
			}
			if jti, ok := claims["jti"].(string); ok {
				info.JTI = jti
			} else if defaultJWTID {
				info.JTI = ""
			}
		}
		out = append(out, info)
	}
	add(auth.TokenKindAccess, req.AccessToken)
	add(auth.TokenKindID, req.IDToken)
	add(auth.TokenKindUserinfo, req.UserinfoToken)
	return out
}

// projectEntityClaims marshals ent to its Cedar JSON form and extracts the
// configured attribute paths, for the decision log's Claims field.
func projectEntityClaims(ent any, paths []string) map[string]any {
	if len(paths) == 0 {
		return nil
	}
	b, err := json.Marshal(ent)
	if err != nil {
		return nil
	}
	return logger.ProjectClaims(b, paths)
}
