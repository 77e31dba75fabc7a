package scenario

import (
	"context"
	"math/rand"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Diseases returns the disease contexts exercised by the workloads. The
// context ids are real pipeline model identifiers captured from the
// platform and accepted by the query endpoints.
func Diseases() []Disease {
	return []Disease{
		{
			Name:   "celiac",
			Tissue: "duodenum",
			ContextIDs: []string{
				"494f46e-e9a23cb-a7767bb-a7767bb",
				"494f46e-4c73c1b-f42422c-a7767bb",
				"494f46e-271369d-f42422c-a7767bb",
			},
		},
		{
			Name:   "ulcerative colitis",
			Tissue: "colon",
			ContextIDs: []string{
				"b9b43f9-e9a23cb-95997a7-95997a7",
				"b9b43f9-e9a23cb-688f3bf-688f3bf",
				"b9b43f9-25f2517-0d34eea-688f3bf",
			},
		},
		{
			Name:   "crohn disease",
			Tissue: "colon",
			ContextIDs: []string{
				"b9b43f9-e9a23cb-95997a7-95997a7",
				"b9b43f9-e9a23cb-688f3bf-688f3bf",
			},
		},
		{
			Name:   "systemic sclerosis",
			Tissue: "skin",
			ContextIDs: []string{
				"494f46e-e9a23cb-a7767bb-a7767bb",
			},
		},
	}
}

// PickDisease selects a random disease context for a new session.
func PickDisease(rng *rand.Rand) Disease {
	diseases := Diseases()
	return diseases[rng.Intn(len(diseases))]
}

// switchDisease moves the session to a different disease context, the way
// a user jumps between indications mid-session.
func switchDisease(s *Session) {
	var available []Disease
	for _, d := range Diseases() {
		if d.Name != s.Disease.Name {
			available = append(available, d)
		}
	}
	if len(available) == 0 {
		return
	}
	s.Disease = available[s.Rand.Intn(len(available))]
	s.Log.Debug("switched disease", zap.String("disease", s.Disease.Name))
}

// Browser-facing pages under the customer's platform root.
var explorerPages = []string{
	"/disease-explorer/differential-expression",
	"/disease-explorer/target-cell-association",
	"/disease-explorer/geneset-regulation",
}

// ---- shared operation handlers ----

func opLanding(ctx context.Context, s *Session) error {
	_, err := s.GetPage(ctx, "landing-page", "/")
	return err
}

func opExplorerPage(ctx context.Context, s *Session) error {
	page := explorerPages[s.Rand.Intn(len(explorerPages))]
	_, err := s.GetPage(ctx, "disease-explorer", page)
	return err
}

func opHealthCheck(ctx context.Context, s *Session) error {
	body, err := s.GetAPI(ctx, "health-check", "/")
	if err != nil {
		return err
	}
	if status := gjson.GetBytes(body, "status").String(); status != "" && status != "UP" {
		s.Log.Warn("health endpoint degraded", zap.String("status", status))
	}
	return nil
}

func opTenant(ctx context.Context, s *Session) error {
	_, err := s.GetAPI(ctx, "tenant-auth", "/admin/tenant")
	return err
}

func opProjectCatalog(ctx context.Context, s *Session) error {
	body, err := s.PostJSON(ctx, "project-catalog", "/project/fetch/catalog", map[string]any{})
	if err != nil {
		return err
	}
	if projects := gjson.GetBytes(body, "#"); projects.Exists() {
		s.Log.Debug("catalog fetched", zap.Int64("projects", projects.Int()))
	}
	return nil
}

func opQuestionIndex(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{"disease": s.Disease.Name}, nil)
	_, err := s.PostJSON(ctx, "question-index",
		"/query/fetch?resourceType=question_index&responseType=parquet", payload)
	return err
}

func opGeneData(ctx context.Context, s *Session) error {
	payload := s.Payload(nil, nil)
	_, err := s.PostJSON(ctx, "gene-data",
		"/query/fetch?resourceType=gene&responseType=parquet", payload)
	return err
}

func opMetaContexts(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"disease":      s.Disease.Name,
		"relationship": "integrates",
	}, nil)
	_, err := s.PostJSON(ctx, "meta-contexts",
		"/query/fetch?resourceType=meta_contexts_datasets_map&responseType=parquet", payload)
	return err
}

func opGeneExpressionMeta(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"context_id": []string{s.Disease.ContextID(s.Rand)},
		"disease":    s.Disease.Name,
	}, nil)
	_, err := s.PostJSON(ctx, "gene-expression-meta",
		"/query/fetch?resourceType=gene_expression_differences_meta&responseType=parquet", payload)
	return err
}

func opGeneExpression(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"context_id": []string{s.Disease.ContextID(s.Rand)},
		"disease":    s.Disease.Name,
	}, nil)
	_, err := s.PostJSON(ctx, "gene-expression",
		"/query/fetch?resourceType=gene_expression_differences&responseType=parquet", payload)
	return err
}

// opGeneExpressionAll queries expression differences across every context
// the disease has, the heaviest fetch in the suite.
func opGeneExpressionAll(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"context_id": s.Disease.ContextIDs,
		"disease":    s.Disease.Name,
	}, nil)
	_, err := s.PostJSON(ctx, "gene-expression-all",
		"/query/fetch?resourceType=gene_expression_differences&responseType=parquet", payload)
	return err
}

func opCellAbundance(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"context_id": s.Disease.ContextIDs,
		"disease":    s.Disease.Name,
	}, nil)
	_, err := s.PostJSON(ctx, "cell-abundance",
		"/query/fetch?resourceType=cell_abundance_differences&responseType=parquet", payload)
	return err
}

func opCellAbundanceMeta(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"context_id": s.Disease.ContextIDs,
		"disease":    s.Disease.Name,
	}, nil)
	_, err := s.PostJSON(ctx, "cell-abundance-meta",
		"/query/fetch?resourceType=cell_abundance_differences_meta&responseType=parquet", payload)
	return err
}

func opGenesetGrouped(ctx context.Context, s *Session) error {
	payload := s.Payload(nil, []string{
		"geneset_id:::geneset_name",
		"collection:::collection_name",
	})
	_, err := s.PostJSON(ctx, "geneset-grouped",
		"/query/fetch?resourceType=geneset_grouped&responseType=parquet", payload)
	return err
}

func opGenesetRegulation(ctx context.Context, s *Session) error {
	payload := s.Payload(map[string]any{
		"context_id": []string{s.Disease.ContextID(s.Rand)},
		"disease":    s.Disease.Name,
		"collection": "cr-target",
	}, nil)
	_, err := s.PostJSON(ctx, "geneset-regulation",
		"/query/fetch?resourceType=geneset_expression_regulation_differences&responseType=parquet", payload)
	return err
}

func opCellView(ctx context.Context, s *Session) error {
	payload := s.Payload(nil, nil)
	_, err := s.PostJSON(ctx, "cell-view",
		"/query/fetch?resourceType=cell_view&responseType=parquet", payload)
	return err
}

func opModelDiseases(ctx context.Context, s *Session) error {
	payload := s.Payload(nil, nil)
	_, err := s.PostJSON(ctx, "model-diseases",
		"/query/fetch?resourceType=model_diseases&responseType=json", payload)
	return err
}

func opProjectCounters(ctx context.Context, s *Session) error {
	payload := s.Payload(nil, nil)
	_, err := s.PostJSON(ctx, "project-counters",
		"/query/fetch?resourceType=total_project_counters&responseType=json", payload)
	return err
}

func opSwitchDisease(ctx context.Context, s *Session) error {
	switchDisease(s)
	payload := s.Payload(map[string]any{"disease": s.Disease.Name}, nil)
	_, err := s.PostJSON(ctx, "switch-disease",
		"/query/fetch?resourceType=question_index&responseType=parquet", payload)
	return err
}

// opRotateDisease changes the session's disease context without issuing a
// request, so subsequent queries vary.
func opRotateDisease(ctx context.Context, s *Session) error {
	switchDisease(s)
	return nil
}

// MixedTaskSet is the realistic mixed workload: frequent light browsing,
// moderate catalog and index queries, occasional heavy data pulls.
func MixedTaskSet() *TaskSet {
	return &TaskSet{
		Name: "mixed",
		Mode: ModeWeighted,
		Operations: []Operation{
			{Name: "landing-page", Weight: 10, Think: ShortPause, Run: opLanding},
			{Name: "disease-explorer", Weight: 8, Think: ShortPause, Run: opExplorerPage},
			{Name: "tenant-auth", Weight: 6, Think: ShortPause, Run: opTenant},
			{Name: "project-catalog", Weight: 5, Think: MediumPause, Run: opProjectCatalog},
			{Name: "question-index", Weight: 5, Think: MediumPause, Run: opQuestionIndex},
			{Name: "meta-contexts", Weight: 4, Think: MediumPause, Run: opMetaContexts},
			{Name: "geneset-grouped", Weight: 4, Think: MediumPause, Run: opGenesetGrouped},
			{Name: "gene-data", Weight: 3, Think: LongPause, Run: opGeneData},
			{Name: "gene-expression", Weight: 2, Think: LongPause, Run: opGeneExpression},
			{Name: "cell-abundance", Weight: 2, Think: LongPause, Run: opCellAbundance},
			{Name: "geneset-regulation", Weight: 2, Think: LongPause, Run: opGenesetRegulation},
			{Name: "switch-disease", Weight: 1, Think: MediumPause, Run: opSwitchDisease},
		},
	}
}

// SpikeTaskSet is the fast-paced workload used during burst runs. Minimal
// think time so each user applies as much pressure as possible.
func SpikeTaskSet() *TaskSet {
	think := Pause{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond}
	return &TaskSet{
		Name: "spike",
		Mode: ModeWeighted,
		Operations: []Operation{
			{Name: "tenant-auth", Weight: 5, Think: think, Run: opTenant},
			{Name: "project-catalog", Weight: 4, Think: think, Run: opProjectCatalog},
			{Name: "question-index", Weight: 3, Think: think, Run: opQuestionIndex},
			{Name: "meta-contexts", Weight: 2, Think: think, Run: opMetaContexts},
			{Name: "gene-expression", Weight: 1, Think: think, Run: opGeneExpression},
		},
	}
}

// APITaskSet hammers the backend API directly, skipping browser pages.
// Weights follow the call mix seen on a loaded tenant.
func APITaskSet() *TaskSet {
	return &TaskSet{
		Name: "api",
		Mode: ModeWeighted,
		Operations: []Operation{
			{Name: "tenant-auth", Weight: 10, Think: ShortPause, Run: opTenant},
			{Name: "project-catalog", Weight: 8, Think: ShortPause, Run: opProjectCatalog},
			{Name: "question-index", Weight: 7, Think: ShortPause, Run: opQuestionIndex},
			{Name: "gene-data", Weight: 6, Think: MediumPause, Run: opGeneData},
			{Name: "meta-contexts", Weight: 5, Think: MediumPause, Run: opMetaContexts},
			{Name: "gene-expression-meta", Weight: 5, Think: MediumPause, Run: opGeneExpressionMeta},
			{Name: "model-diseases", Weight: 3, Think: MediumPause, Run: opModelDiseases},
			{Name: "health-check", Weight: 2, Think: ShortPause, Run: opHealthCheck},
			{Name: "cell-view", Weight: 2, Think: MediumPause, Run: opCellView},
			{Name: "project-counters", Weight: 1, Think: MediumPause, Run: opProjectCounters},
		},
	}
}

// DataQueryTaskSet exercises the heavy query/fetch resource types: large
// parquet pulls, multi-context expression queries, complex filters. Think
// times are longer since these are backend-bound operations.
func DataQueryTaskSet() *TaskSet {
	return &TaskSet{
		Name: "data-query",
		Mode: ModeWeighted,
		Operations: []Operation{
			{Name: "gene-data", Weight: 3, Think: MediumPause, Run: opGeneData},
			{Name: "gene-expression-all", Weight: 3, Think: LongPause, Run: opGeneExpressionAll},
			{Name: "gene-expression-meta", Weight: 3, Think: MediumPause, Run: opGeneExpressionMeta},
			{Name: "cell-abundance", Weight: 2, Think: LongPause, Run: opCellAbundance},
			{Name: "cell-abundance-meta", Weight: 2, Think: MediumPause, Run: opCellAbundanceMeta},
			{Name: "geneset-grouped", Weight: 2, Think: MediumPause, Run: opGenesetGrouped},
			{Name: "geneset-regulation", Weight: 2, Think: LongPause, Run: opGenesetRegulation},
			{Name: "meta-contexts", Weight: 1, Think: MediumPause, Run: opMetaContexts},
			{Name: "rotate-disease", Weight: 1, Run: opRotateDisease},
		},
	}
}

// JourneyTaskSet walks a full user session captured from real traffic:
// landing, catalog, navigation, heavy data pulls, a disease switch, and a
// return to the landing page. Steps run in order and the journey repeats
// for as long as the user is alive.
func JourneyTaskSet() *TaskSet {
	return &TaskSet{
		Name: "journey",
		Mode: ModeSequential,
		Loop: true,
		Operations: []Operation{
			{Name: "landing-tenant", Think: ShortPause, Run: func(ctx context.Context, s *Session) error {
				if _, err := s.GetPage(ctx, "landing-page", "/"); err != nil {
					return err
				}
				return opTenant(ctx, s)
			}},
			{Name: "project-catalog", Think: ShortPause, Run: opProjectCatalog},
			{Name: "question-index", Think: MediumPause, Run: opQuestionIndex},
			{Name: "gene-data", Think: MediumPause, Run: opGeneData},
			{Name: "disease-explorer", Think: ShortPause, Run: func(ctx context.Context, s *Session) error {
				_, err := s.GetPage(ctx, "disease-explorer", "/disease-explorer/differential-expression")
				return err
			}},
			{Name: "meta-contexts", Think: MediumPause, Run: opMetaContexts},
			{Name: "gene-expression-meta", Think: Pause{Min: time.Second, Max: 3 * time.Second}, Run: opGeneExpressionMeta},
			{Name: "gene-expression", Think: LongPause, Run: opGeneExpression},
			{Name: "cell-abundance", Think: LongPause, Run: opCellAbundance},
			{Name: "geneset-grouped", Think: MediumPause, Run: opGenesetGrouped},
			{Name: "geneset-regulation", Think: Pause{Min: 2 * time.Second, Max: 3 * time.Second}, Run: opGenesetRegulation},
			{Name: "target-cell-page", Think: ShortPause, Run: func(ctx context.Context, s *Session) error {
				_, err := s.GetPage(ctx, "target-cell-page", "/disease-explorer/target-cell-association")
				return err
			}},
			{Name: "cell-abundance-meta", Think: MediumPause, Run: opCellAbundanceMeta},
			{Name: "switch-disease", Think: MediumPause, Run: opSwitchDisease},
			{Name: "return-landing", Think: ShortPause, Run: func(ctx context.Context, s *Session) error {
				_, err := s.GetPage(ctx, "return-landing", "/")
				if err == nil {
					s.Log.Debug("journey complete")
				}
				return err
			}},
		},
	}
}

// ByName resolves a built-in task set. Returns nil for unknown names.
func ByName(name string) *TaskSet {
	switch name {
	case "mixed":
		return MixedTaskSet()
	case "spike":
		return SpikeTaskSet()
	case "api":
		return APITaskSet()
	case "data-query":
		return DataQueryTaskSet()
	case "journey":
		return JourneyTaskSet()
	default:
		return nil
	}
}
