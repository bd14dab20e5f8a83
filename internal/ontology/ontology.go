// Package ontology answers structural and definitional questions from the
// YAML-backed risk catalogs. A parallel branch, fully independent of the
// numeric pipeline: fixed entity->source mapping, an entity x operation
// allow-list, and mandatory traceability on every successful result.
package ontology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"k9/internal/command"
	"k9/internal/state"
)

// Operations.
const (
	OpRetrieve         = "retrieve"
	OpDescribe         = "describe"
	OpGetCauses        = "get_causes"
	OpGetControls      = "get_controls"
	OpGetConsequences  = "get_consequences"
	OpGetTasksAndRoles = "get_tasks_and_roles"
)

// Catalog source files, keyed by entity.
var entitySources = map[string]string{
	"riesgo":       "01_catalogo_riesgos_v8.yaml",
	"causa":        "02_catalogo_causas_v8.yaml",
	"consecuencia": "03_catalogo_consecuencias_v8.yaml",
	"tarea":        "04_catalogo_tareas_roles_v8.yaml",
	"rol":          "04_catalogo_tareas_roles_v8.yaml",
	"bowtie":       "05_bowtie_riesgos_v8.yaml",
}

// listKeys maps each entity to the top-level list key in its source file.
var listKeys = map[string]string{
	"riesgo":       "riesgos",
	"causa":        "causas",
	"consecuencia": "consecuencias",
	"tarea":        "tareas",
	"bowtie":       "bowties",
}

// allowedOps is the closed entity x operation matrix.
var allowedOps = map[string]map[string]bool{
	"riesgo": {
		OpRetrieve: true, OpDescribe: true, OpGetCauses: true,
		OpGetControls: true, OpGetConsequences: true, OpGetTasksAndRoles: true,
	},
	"causa":        {OpRetrieve: true},
	"consecuencia": {OpRetrieve: true},
	"tarea":        {OpRetrieve: true},
	"rol":          {OpRetrieve: true},
	"bowtie":       {OpRetrieve: true},
}

// Catalog resolves ontology queries against YAML files under one directory.
type Catalog struct {
	dir string
}

// NewCatalog returns a catalog rooted at dir. Files are read per query.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Run resolves one ontology query. Gate: intent must be ONTOLOGY_QUERY,
// otherwise skip+trace. Contract violations return a typed *Error.
func (c *Catalog) Run(st *state.State) (*state.State, error) {
	next := st.Clone()

	if st.Intent() != command.IntentOntology {
		next.Trace(fmt.Sprintf("ontology: skip (intent gate, got %s)", st.Intent()))
		return next, nil
	}
	if st.Command == nil || st.Command.Payload == nil {
		return nil, newError(CodeInvalidIntent, "ontology query without payload", nil)
	}
	entity := st.Command.Entity()
	operation := st.Command.Operation()
	filters := st.Command.Payload.Filters

	ops, supported := allowedOps[entity]
	if !supported {
		return nil, newError(CodeEntityNotSupported,
			fmt.Sprintf("entity %q is not in the ontology", entity),
			map[string]any{"entity": entity})
	}
	if !ops[operation] {
		return nil, newError(CodeOperationNotAllowed,
			fmt.Sprintf("operation %q is not allowed for entity %q", operation, entity),
			map[string]any{"entity": entity, "operation": operation})
	}

	result, err := c.resolve(entity, operation, filters)
	if err != nil {
		return nil, err
	}
	next.Analysis.Ontology = result
	next.Trace(fmt.Sprintf("ontology: %s/%s resolved from %v", entity, operation, result.Traceability.SourceFiles))
	return next, nil
}

func (c *Catalog) resolve(entity, operation string, filters map[string]string) (*state.OntologyResult, error) {
	trace := state.OntologyTraceability{
		SourceFiles:    []string{entitySources[entity]},
		FiltersApplied: filters,
		ResolutionPath: []string{entity + "." + operation},
	}
	id := filters["id"]

	var data any
	var err error
	switch operation {
	case OpRetrieve:
		data, err = c.retrieve(entity, id, &trace)
	case OpDescribe:
		data, err = c.describe(id, &trace)
	case OpGetCauses:
		data, err = c.related(id, "causa", "causas", &trace)
	case OpGetConsequences:
		data, err = c.related(id, "consecuencia", "consecuencias", &trace)
	case OpGetControls:
		data, err = c.controls(id, &trace)
	case OpGetTasksAndRoles:
		data, err = c.tasksAndRoles(id, &trace)
	default:
		return nil, newError(CodeOperationNotImplemented,
			fmt.Sprintf("operation %q has no resolver", operation),
			map[string]any{"operation": operation})
	}
	if err != nil {
		return nil, err
	}
	return &state.OntologyResult{
		Entity:       entity,
		Operation:    operation,
		Data:         data,
		Traceability: trace,
	}, nil
}

// ============================================================================
// OPERATIONS
// ============================================================================

func (c *Catalog) retrieve(entity, id string, trace *state.OntologyTraceability) (any, error) {
	if entity == "bowtie" {
		return c.bowtie(id, trace)
	}
	if entity == "rol" {
		return c.allRoles(id, trace)
	}
	items, err := c.loadList(entity)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return items, nil
	}
	item := findByID(items, "id", id)
	if item == nil {
		return nil, notFound(entity, id)
	}
	trace.ResolutionPath = append(trace.ResolutionPath, "id="+id)
	return item, nil
}

func (c *Catalog) describe(id string, trace *state.OntologyTraceability) (any, error) {
	if id == "" {
		return nil, idRequired(OpDescribe)
	}
	return c.retrieve("riesgo", id, trace)
}

// related resolves risk -> causes / consequences via the riesgo_asociado
// foreign key.
func (c *Catalog) related(riskID, entity, relation string, trace *state.OntologyTraceability) (any, error) {
	if riskID == "" {
		return nil, idRequired("get_" + relation)
	}
	if _, err := c.riskByID(riskID); err != nil {
		return nil, err
	}
	items, err := c.loadList(entity)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, item := range items {
		if stringField(item, "riesgo_asociado") == riskID {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, newError(CodeRelationNotFound,
			fmt.Sprintf("no %s linked to risk %q", relation, riskID),
			map[string]any{"risk_id": riskID, "relation": relation})
	}
	trace.SourceFiles = append(trace.SourceFiles, entitySources[entity])
	trace.ResolutionPath = append(trace.ResolutionPath, "riesgo.id="+riskID, relation+".riesgo_asociado")
	return out, nil
}

func (c *Catalog) controls(riskID string, trace *state.OntologyTraceability) (any, error) {
	if riskID == "" {
		return nil, idRequired(OpGetControls)
	}
	risk, err := c.riskByID(riskID)
	if err != nil {
		return nil, err
	}
	controls, ok := risk["controles_criticos"].([]any)
	if !ok || len(controls) == 0 {
		return nil, newError(CodeRelationNotFound,
			fmt.Sprintf("risk %q has no critical controls", riskID),
			map[string]any{"risk_id": riskID})
	}
	trace.ResolutionPath = append(trace.ResolutionPath, "riesgo.id="+riskID, "riesgo.controles_criticos")
	return controls, nil
}

// tasksAndRoles is the two-hop derivation: risk -> tasks whose
// riesgos_asociados contain it -> the union of their roles, deduplicated by
// id_rol.
func (c *Catalog) tasksAndRoles(riskID string, trace *state.OntologyTraceability) (any, error) {
	if riskID == "" {
		return nil, idRequired(OpGetTasksAndRoles)
	}
	if _, err := c.riskByID(riskID); err != nil {
		return nil, err
	}
	tasks, err := c.loadList("tarea")
	if err != nil {
		return nil, err
	}

	var matched []map[string]any
	roleByID := make(map[string]map[string]any)
	for _, task := range tasks {
		if !containsString(task["riesgos_asociados"], riskID) {
			continue
		}
		matched = append(matched, task)
		if roles, ok := task["roles"].([]any); ok {
			for _, raw := range roles {
				if role, ok := raw.(map[string]any); ok {
					if roleID := stringField(role, "id_rol"); roleID != "" {
						roleByID[roleID] = role
					}
				}
			}
		}
	}
	if len(matched) == 0 {
		return nil, newError(CodeRelationNotFound,
			fmt.Sprintf("no tasks linked to risk %q", riskID),
			map[string]any{"risk_id": riskID})
	}

	roleIDs := make([]string, 0, len(roleByID))
	for roleID := range roleByID {
		roleIDs = append(roleIDs, roleID)
	}
	sort.Strings(roleIDs)
	roles := make([]map[string]any, len(roleIDs))
	for i, roleID := range roleIDs {
		roles[i] = roleByID[roleID]
	}

	trace.SourceFiles = append(trace.SourceFiles, entitySources["tarea"])
	trace.ResolutionPath = append(trace.ResolutionPath,
		"riesgo.id="+riskID, "tarea.riesgos_asociados", "tarea.roles")
	return map[string]any{"tasks": matched, "roles": roles}, nil
}

func (c *Catalog) bowtie(riskID string, trace *state.OntologyTraceability) (any, error) {
	if riskID == "" {
		return nil, idRequired("bowtie." + OpRetrieve)
	}
	items, err := c.loadList("bowtie")
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if risk, ok := item["riesgo"].(map[string]any); ok && stringField(risk, "id") == riskID {
			trace.ResolutionPath = append(trace.ResolutionPath, "bowtie.riesgo.id="+riskID)
			return item, nil
		}
	}
	return nil, notFound("bowtie", riskID)
}

func (c *Catalog) allRoles(roleID string, trace *state.OntologyTraceability) (any, error) {
	tasks, err := c.loadList("tarea")
	if err != nil {
		return nil, err
	}
	roleByID := make(map[string]map[string]any)
	for _, task := range tasks {
		if roles, ok := task["roles"].([]any); ok {
			for _, raw := range roles {
				if role, ok := raw.(map[string]any); ok {
					if id := stringField(role, "id_rol"); id != "" {
						roleByID[id] = role
					}
				}
			}
		}
	}
	if roleID != "" {
		role, ok := roleByID[roleID]
		if !ok {
			return nil, notFound("rol", roleID)
		}
		trace.ResolutionPath = append(trace.ResolutionPath, "rol.id_rol="+roleID)
		return role, nil
	}
	ids := make([]string, 0, len(roleByID))
	for id := range roleByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, len(ids))
	for i, id := range ids {
		out[i] = roleByID[id]
	}
	return out, nil
}

// ============================================================================
// SOURCE ACCESS
// ============================================================================

func (c *Catalog) riskByID(riskID string) (map[string]any, error) {
	risks, err := c.loadList("riesgo")
	if err != nil {
		return nil, err
	}
	risk := findByID(risks, "id", riskID)
	if risk == nil {
		return nil, notFound("riesgo", riskID)
	}
	return risk, nil
}

func (c *Catalog) loadList(entity string) ([]map[string]any, error) {
	file := entitySources[entity]
	raw, err := os.ReadFile(filepath.Join(c.dir, file))
	if err != nil {
		return nil, newError(CodeSourceNotFound,
			fmt.Sprintf("ontology source %q unavailable", file),
			map[string]any{"file": file})
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, newError(CodeSourceNotFound,
			fmt.Sprintf("ontology source %q unreadable: %v", file, err),
			map[string]any{"file": file})
	}
	list, ok := doc[listKeys[entity]].([]any)
	if !ok {
		return nil, newError(CodeSourceNotFound,
			fmt.Sprintf("ontology source %q missing %q list", file, listKeys[entity]),
			map[string]any{"file": file, "key": listKeys[entity]})
	}
	out := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		if item, ok := raw.(map[string]any); ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func idRequired(operation string) *Error {
	return newError(CodeIDRequired,
		fmt.Sprintf("operation %q requires an id filter", operation),
		map[string]any{"operation": operation})
}

func notFound(entity, id string) *Error {
	return newError(CodeEntityNotFound,
		fmt.Sprintf("%s %q not found", entity, id),
		map[string]any{"entity": entity, "id": id})
}

func findByID(items []map[string]any, key, id string) map[string]any {
	for _, item := range items {
		if stringField(item, key) == id {
			return item
		}
	}
	return nil
}

func stringField(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

func containsString(raw any, want string) bool {
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}
