package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"skillpass/internal/engine"
	"skillpass/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"below_minimum_investment"`
	Message string         `json:"message" example:"amount below minimum investment"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the SkillPass API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("SkillPass API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerOverview(group, cfg.Engine)
	registerAdmin(group, cfg.Engine)
	registerSkills(group, cfg.Engine)
	registerInvestments(group, cfg.Engine)
	registerStaking(group, cfg.Engine)
	registerPortfolio(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine sentinels to stable codes.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrSkillNotFound),
		errors.Is(err, engine.ErrNoInvestmentFound),
		errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrUnauthorized):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrNotInitialized):
		return newAPIError(http.StatusConflict, "not_initialized", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyInitialized):
		return newAPIError(http.StatusConflict, "already_initialized", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyChallenged):
		return newAPIError(http.StatusConflict, "already_challenged", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyEndorsed):
		return newAPIError(http.StatusConflict, "already_endorsed", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidAmount):
		return newAPIError(http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, engine.ErrBelowMinimumInvestment):
		return newAPIError(http.StatusUnprocessableEntity, "below_minimum_investment", err.Error(), nil)
	case errors.Is(err, engine.ErrBelowMinimumStake):
		return newAPIError(http.StatusUnprocessableEntity, "below_minimum_stake", err.Error(), nil)
	case errors.Is(err, engine.ErrInsufficientFunds):
		return newAPIError(http.StatusUnprocessableEntity, "insufficient_funds", err.Error(), nil)
	case errors.Is(err, engine.ErrMaxSupplyExceeded):
		return newAPIError(http.StatusUnprocessableEntity, "max_supply_exceeded", err.Error(), nil)
	case errors.Is(err, engine.ErrCannotInvestInOwnSkill):
		return newAPIError(http.StatusUnprocessableEntity, "cannot_invest_in_own_skill", err.Error(), nil)
	case errors.Is(err, engine.ErrCannotEndorseOwnSkill):
		return newAPIError(http.StatusUnprocessableEntity, "cannot_endorse_own_skill", err.Error(), nil)
	case errors.Is(err, engine.ErrNoYieldToClaim):
		return newAPIError(http.StatusUnprocessableEntity, "no_yield_to_claim", err.Error(), nil)
	case errors.Is(err, engine.ErrNoRewardsToClaim):
		return newAPIError(http.StatusUnprocessableEntity, "no_rewards_to_claim", err.Error(), nil)
	case errors.Is(err, engine.ErrNothingToChallenge):
		return newAPIError(http.StatusUnprocessableEntity, "nothing_to_challenge", err.Error(), nil)
	case errors.Is(err, engine.ErrSkillNotChallenged):
		return newAPIError(http.StatusUnprocessableEntity, "skill_not_challenged", err.Error(), nil)
	case errors.Is(err, engine.ErrChallengePeriodNotEnded):
		return newAPIError(http.StatusUnprocessableEntity, "challenge_period_not_ended", err.Error(), nil)
	case errors.Is(err, engine.ErrInsufficientReputationToChallenge):
		return newAPIError(http.StatusUnprocessableEntity, "insufficient_reputation", err.Error(), nil)
	case errors.Is(err, engine.ErrAmountOverflow):
		return newAPIError(http.StatusUnprocessableEntity, "amount_overflow", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>SkillPass API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerOverview(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "overview",
		Method:      http.MethodGet,
		Path:        "/overview",
		Summary:     "Platform overview",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body OverviewResponse `json:"body"`
	}, error) {
		ov, err := e.Overview(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OverviewResponse `json:"body"`
		}{Body: OverviewResponse{
			State:           programStateResponse(ov.State),
			Treasury:        treasuryResponse(ov.Treasury),
			TreasuryBalance: ov.TreasuryBalance,
			TotalSupply:     ov.TotalSupply,
		}}, nil
	})
}

func registerAdmin(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "initialize",
		Method:        http.MethodPost,
		Path:          "/initialize",
		Summary:       "Initialize program state and treasury",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body InitializeRequest `json:"body"`
	}) (*struct {
		Body ProgramStateResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		authority := input.Body.Authority
		if authority == "" {
			authority = actorID
		}
		state, err := e.Initialize(ctx, authority)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProgramStateResponse `json:"body"`
		}{Body: programStateResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mint-reputation",
		Method:      http.MethodPost,
		Path:        "/reputation/mint",
		Summary:     "Mint reputation tokens",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body MintRequest `json:"body"`
	}) (*struct {
		Body ReputationResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.MintReputation(ctx, actorID, input.Body.User, input.Body.Amount, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReputationResponse `json:"body"`
		}{Body: reputationResponse(rep)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "slash-reputation",
		Method:      http.MethodPost,
		Path:        "/reputation/slash",
		Summary:     "Slash reputation tokens",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body SlashRequest `json:"body"`
	}) (*struct {
		Body ReputationResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.SlashReputation(ctx, actorID, input.Body.User, input.Body.Amount, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReputationResponse `json:"body"`
		}{Body: reputationResponse(rep)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reputation",
		Method:      http.MethodGet,
		Path:        "/reputation/{user_id}",
		Summary:     "Get a user's reputation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body ReputationResponse `json:"body"`
	}, error) {
		rep, err := e.Repo.GetReputation(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReputationResponse `json:"body"`
		}{Body: reputationResponse(rep)}, nil
	})
}

func registerSkills(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-skill",
		Method:        http.MethodPost,
		Path:          "/skills",
		Summary:       "Register a skill",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateSkillRequest `json:"body"`
	}) (*struct {
		Body SkillResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		skill, err := e.CreateSkill(ctx, engine.SkillCreateOptions{
			Owner:       actorID,
			Category:    input.Body.Category,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			MetadataURI: input.Body.MetadataURI,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SkillResponse `json:"body"`
		}{Body: skillResponse(skill)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-skills",
		Method:      http.MethodGet,
		Path:        "/skills",
		Summary:     "List skills",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Owner    string `query:"owner"`
		Category string `query:"category"`
		Verified string `query:"verified" enum:",true,false"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []SkillResponse `json:"body"`
	}, error) {
		filters := repo.SkillFilters{
			Owner:    input.Owner,
			Category: input.Category,
			Limit:    normalizeLimit(input.Limit),
		}
		if input.Verified != "" {
			v := input.Verified == "true"
			filters.Verified = &v
		}
		items, err := e.Repo.ListSkills(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SkillResponse `json:"body"`
		}{Body: mapSkills(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-skill",
		Method:      http.MethodGet,
		Path:        "/skills/{skill_id}",
		Summary:     "Get skill detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SkillID uint64 `path:"skill_id"`
	}) (*struct {
		Body SkillDetailResponse `json:"body"`
	}, error) {
		detail, err := e.SkillDetail(ctx, input.SkillID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SkillDetailResponse `json:"body"`
		}{Body: skillDetailResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "leaderboard",
		Method:      http.MethodGet,
		Path:        "/leaderboard",
		Summary:     "Skills ranked by total stake",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20"`
	}) (*struct {
		Body []SkillResponse `json:"body"`
	}, error) {
		items, err := e.Repo.Leaderboard(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []SkillResponse `json:"body"`
		}{Body: mapSkills(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-skill-metrics",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/metrics",
		Summary:     "Reconcile skill metrics",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64                    `path:"skill_id"`
		Body    UpdateSkillMetricsRequest `json:"body"`
	}) (*struct {
		Body SkillResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		skill, err := e.UpdateSkillMetrics(ctx, actorID, input.SkillID, input.Body.TotalStaked, input.Body.EndorsementCount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SkillResponse `json:"body"`
		}{Body: skillResponse(skill)}, nil
	})
}

func registerInvestments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "invest",
		Method:        http.MethodPost,
		Path:          "/skills/{skill_id}/invest",
		Summary:       "Invest in a skill",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64        `path:"skill_id"`
		Body    InvestRequest `json:"body"`
	}) (*struct {
		Body InvestmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.Invest(ctx, actorID, input.SkillID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InvestmentResponse `json:"body"`
		}{Body: investmentResponse(inv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-job-completion",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/revenue/job",
		Summary:     "Record a completed job's revenue",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64               `path:"skill_id"`
		Body    JobCompletionRequest `json:"body"`
	}) (*struct {
		Body RevenueSplitResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		split, err := e.RecordJobCompletion(ctx, actorID, input.SkillID, input.Body.Revenue, input.Body.Title)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RevenueSplitResponse `json:"body"`
		}{Body: RevenueSplitResponse(split)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-subscription-revenue",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/revenue/subscription",
		Summary:     "Record subscription revenue",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64             `path:"skill_id"`
		Body    FlatRevenueRequest `json:"body"`
	}) (*struct {
		Body BreakdownResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.RecordSubscriptionRevenue(ctx, actorID, input.SkillID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BreakdownResponse `json:"body"`
		}{Body: breakdownResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-verification-fee",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/revenue/verification",
		Summary:     "Record a verification fee",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64             `path:"skill_id"`
		Body    FlatRevenueRequest `json:"body"`
	}) (*struct {
		Body BreakdownResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.RecordVerificationFee(ctx, actorID, input.SkillID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BreakdownResponse `json:"body"`
		}{Body: breakdownResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-yield",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/yield/claim",
		Summary:     "Claim accrued yield",
		Errors: []int{
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64 `path:"skill_id"`
	}) (*struct {
		Body YieldClaimResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		claim, err := e.ClaimYield(ctx, actorID, input.SkillID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body YieldClaimResponse `json:"body"`
		}{Body: YieldClaimResponse(claim)}, nil
	})
}

func registerStaking(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "endorse-skill",
		Method:        http.MethodPost,
		Path:          "/skills/{skill_id}/endorse",
		Summary:       "Stake an endorsement",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64         `path:"skill_id"`
		Body    EndorseRequest `json:"body"`
	}) (*struct {
		Body EndorsementResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		end, err := e.Endorse(ctx, actorID, input.SkillID, input.Body.StakeAmount, input.Body.Evidence)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EndorsementResponse `json:"body"`
		}{Body: endorsementResponse(end)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "challenge-skill",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/challenge",
		Summary:     "Challenge a skill's endorsements",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64 `path:"skill_id"`
	}) (*struct {
		Body StakeInfoResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		info, err := e.Challenge(ctx, actorID, input.SkillID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StakeInfoResponse `json:"body"`
		}{Body: stakeInfoResponse(info)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-challenge",
		Method:      http.MethodPost,
		Path:        "/skills/{skill_id}/resolve",
		Summary:     "Resolve a challenge",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SkillID uint64                  `path:"skill_id"`
		Body    ResolveChallengeRequest `json:"body"`
	}) (*struct {
		Body ChallengeResolutionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ResolveChallenge(ctx, actorID, input.SkillID, input.Body.SkillIsValid)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChallengeResolutionResponse `json:"body"`
		}{Body: ChallengeResolutionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-staking-rewards",
		Method:      http.MethodPost,
		Path:        "/rewards/claim",
		Summary:     "Claim accrued staking rewards",
		Errors: []int{
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StakerRewardsResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rewards, err := e.ClaimStakingRewards(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StakerRewardsResponse `json:"body"`
		}{Body: rewardsResponse(rewards)}, nil
	})
}

func registerPortfolio(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "my-portfolio",
		Method:      http.MethodGet,
		Path:        "/me/portfolio",
		Summary:     "Current user's portfolio",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PortfolioResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Portfolio(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PortfolioResponse `json:"body"`
		}{Body: portfolioResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-portfolio",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/portfolio",
		Summary:     "A user's portfolio",
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body PortfolioResponse `json:"body"`
	}, error) {
		p, err := e.Portfolio(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PortfolioResponse `json:"body"`
		}{Body: portfolioResponse(p)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type    string `query:"type"`
		SkillID uint64 `query:"skill_id"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		if input.Cursor != "" {
			cursorID, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			items, err := e.Repo.EventsAfter(ctx, cursorID, limit+1)
			if err != nil {
				return nil, handleError(err)
			}
			resp := paginatedEvents{Items: []EventResponse{}}
			for i, evt := range items {
				if i == limit {
					resp.NextCursor = strconv.FormatInt(items[i-1].ID, 10)
					break
				}
				resp.Items = append(resp.Items, eventResponse(evt))
			}
			return &struct {
				Body paginatedEvents `json:"body"`
			}{Body: resp}, nil
		}
		items, err := e.Repo.LatestEvents(ctx, limit, input.Type, input.SkillID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
