package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				document JSONB NOT NULL
			);

			CREATE TABLE organizations (
				id TEXT PRIMARY KEY,
				document JSONB NOT NULL
			);

			CREATE TABLE users (
				id TEXT PRIMARY KEY,
				document JSONB NOT NULL
			);

			CREATE TABLE triggers (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_triggers_workflow_id ON triggers(workflow_id);

			CREATE TABLE workflow_runs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				trigger_id TEXT,
				status VARCHAR(32) NOT NULL,
				scheduled_for TIMESTAMP WITH TIME ZONE,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_runs_workflow_id ON workflow_runs(workflow_id);
			CREATE INDEX idx_workflow_runs_trigger_id ON workflow_runs(trigger_id, scheduled_for);
		`,
		2: `
			-- Reconciler scans by status and age
			CREATE INDEX idx_workflow_runs_status_updated_at ON workflow_runs(status, updated_at);
		`,
	}
}
