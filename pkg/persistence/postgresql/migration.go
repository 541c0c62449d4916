package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flujos (
				id VARCHAR(64) PRIMARY KEY,
				status VARCHAR(16) NOT NULL CHECK (status IN ('CREATED', 'STARTED', 'FINISHED', 'LOCKED')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX idx_flujos_created_at ON flujos(created_at DESC, id DESC);
		`,
		2: `
			CREATE TABLE flujo_steps (
				kind VARCHAR(32) NOT NULL CHECK (kind IN ('FACE', 'CONTACT_INFO', 'SIGNATURE')),
				id VARCHAR(64) NOT NULL,
				flujo_id VARCHAR(64) NOT NULL,
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (kind, id),
				CONSTRAINT uq_flujo_steps_flujo_kind UNIQUE (kind, flujo_id)
			);
		`,
	}
}
