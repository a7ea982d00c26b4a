package artifact

// CollectionRef links a project map ID list to the collection holding the
// referenced documents.
type CollectionRef struct {
	// MapKey is the project map field listing IDs (e.g. "entity_ids").
	MapKey string

	// Collection is the artifact type and storage collection name.
	Collection string

	// IDField is the document field matched against the listed IDs.
	IDField string
}

// ProjectMapCollections is the ordered set of artifact types a project map
// may reference. Loaded collections follow this order.
var ProjectMapCollections = []CollectionRef{
	{"feature_ids", "features", "feature_id"},
	{"flow_ids", "flows", "flow_id"},
	{"entity_ids", "entities", "entity_id"},
	{"persona_ids", "personas", "persona_id"},
	{"role_ids", "roles", "role_id"},
	{"story_ids", "stories", "story_id"},
	{"requirement_ids", "requirements", "requirement_id"},
	{"dag_task_ids", "dag_tasks", "task_id"},
	{"dag_definition_ids", "dags", "dag_id"},
	{"job_definition_ids", "job_definitions", "job_id"},
	{"partitioning_strategy_ids", "partitioning_strategies", "strategy_id"},
	{"checkpointing_config_ids", "checkpointing", "checkpoint_id"},
	{"trigger_mechanism_ids", "triggers", "trigger_id"},
	{"source_system_ids", "source_systems", "source_id"},
	{"raw_data_schema_ids", "raw_data_schemas", "schema_id"},
	{"target_data_model_ids", "target_data_models", "model_id"},
	{"lineage_definition_ids", "lineage_definitions", "lineage_id"},
	{"data_dictionary_ids", "data_dictionaries", "dictionary_id"},
	{"data_quality_rule_ids", "data_quality_rules", "rule_id"},
	{"transformation_rule_ids", "transformation_rules", "rule_id"},
}

// Well-known artifact types read directly by stages.
const (
	TypeEntities = "entities"
	TypeFlows    = "flows"
	TypeStories  = "stories"
	TypeDAGTasks = "dag_tasks"
)

// DiagramTypes returns the diagram types rendered for a paradigm, in display
// order. Unknown paradigms have no allowed types.
func DiagramTypes(paradigm string) []string {
	switch paradigm {
	case ParadigmApplication:
		return []string{"context", "sequence", "erd", "use_case"}
	case ParadigmDataPipeline:
		return []string{"dag", "class", "target_data_model"}
	default:
		return nil
	}
}
