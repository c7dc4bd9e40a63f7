package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"

	"districts/pkg/cache"
	"districts/pkg/database"
	"districts/pkg/domain"
	"districts/pkg/telemetry"
)

// pgForeignKeyViolation код ошибки PostgreSQL при нарушении внешнего ключа
const pgForeignKeyViolation = "23503"

// PostgresPartitionRepository PostgreSQL реализация Repository
type PostgresPartitionRepository struct {
	db database.DB
}

// NewPostgresPartitionRepository создаёт новый репозиторий
func NewPostgresPartitionRepository(db database.DB) *PostgresPartitionRepository {
	return &PostgresPartitionRepository{db: db}
}

// ============================================================
// GRAPHS
// ============================================================

const (
	insertGraphSQL = `
		INSERT INTO graph_models (id, name, graph_hash, rho, node_count, edge_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	insertUnitsSQL = `
		INSERT INTO graph_units (graph_id, idx, population, area)
		SELECT $1, u.idx, u.population, u.area
		FROM unnest($2::int[], $3::bigint[], $4::float8[]) AS u(idx, population, area)
	`

	insertEdgesSQL = `
		INSERT INTO graph_edges (graph_id, a, b, length)
		SELECT $1, e.a, e.b, e.length
		FROM unnest($2::int[], $3::int[], $4::float8[]) AS e(a, b, length)
	`

	selectGraphSQL = `
		SELECT name, graph_hash, rho, node_count, created_at
		FROM graph_models
		WHERE id = $1
	`

	selectUnitsSQL = `
		SELECT idx, population, area
		FROM graph_units
		WHERE graph_id = $1
		ORDER BY idx
	`

	selectEdgesSQL = `
		SELECT a, b, length
		FROM graph_edges
		WHERE graph_id = $1
		ORDER BY a, b
	`
)

// SaveGraph сохраняет граф в одной транзакции и возвращает его ID
func (r *PostgresPartitionRepository) SaveGraph(ctx context.Context, name string, graph *domain.GraphModel) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresPartitionRepository.SaveGraph")
	defer span.End()

	if graph == nil {
		return "", fmt.Errorf("%w: graph is nil", ErrInvalidGraph)
	}
	if errs := graph.Validate(); len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}

	id := uuid.NewString()
	n := graph.NodeCount()

	idx := make([]int32, n)
	pops := make([]int64, n)
	for i := 0; i < n; i++ {
		idx[i] = int32(i)
		pops[i] = int64(graph.NodePopulation[i])
	}
	areas := append([]float64(nil), graph.NodeArea...)

	edgeA := make([]int32, len(graph.Edges))
	edgeB := make([]int32, len(graph.Edges))
	lengths := make([]float64, len(graph.Edges))
	for i, e := range graph.Edges {
		edgeA[i], edgeB[i], lengths[i] = int32(e.A), int32(e.B), e.Length
	}

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertGraphSQL,
			id, name, cache.GraphHash(graph), graph.Rho, n, graph.EdgeCount(),
		); err != nil {
			return fmt.Errorf("insert graph: %w", err)
		}
		if _, err := tx.Exec(ctx, insertUnitsSQL, id, idx, pops, areas); err != nil {
			return fmt.Errorf("insert units: %w", err)
		}
		if len(lengths) > 0 {
			if _, err := tx.Exec(ctx, insertEdgesSQL, id, edgeA, edgeB, lengths); err != nil {
				return fmt.Errorf("insert edges: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return "", fmt.Errorf("failed to save graph: %w", err)
	}

	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrGraphID, id))
	return id, nil
}

// GetGraph загружает граф по ID
func (r *PostgresPartitionRepository) GetGraph(ctx context.Context, id string) (*StoredGraph, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresPartitionRepository.GetGraph",
		telemetry.WithAttributes(attribute.String(telemetry.AttrGraphID, id)),
	)
	defer span.End()

	stored := &StoredGraph{ID: id}
	var (
		rho       float64
		nodeCount int
	)
	err := r.db.QueryRow(ctx, selectGraphSQL, id).Scan(
		&stored.Name,
		&stored.Hash,
		&rho,
		&nodeCount,
		&stored.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}

	pops, areas, err := r.loadUnits(ctx, id, nodeCount)
	if err != nil {
		return nil, err
	}
	edges, err := r.loadEdges(ctx, id)
	if err != nil {
		return nil, err
	}

	stored.Graph = domain.NewGraphModel(pops, areas, edges, rho)
	telemetry.SetAttributes(ctx, telemetry.GraphAttributes(stored.Graph.NodeCount(), stored.Graph.EdgeCount(), rho)...)
	return stored, nil
}

func (r *PostgresPartitionRepository) loadUnits(ctx context.Context, id string, nodeCount int) ([]uint64, []float64, error) {
	rows, err := r.db.Query(ctx, selectUnitsSQL, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load units: %w", err)
	}
	defer rows.Close()

	pops := make([]uint64, 0, nodeCount)
	areas := make([]float64, 0, nodeCount)
	for rows.Next() {
		var (
			idx  int
			pop  int64
			area float64
		)
		if err := rows.Scan(&idx, &pop, &area); err != nil {
			return nil, nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if idx != len(pops) {
			return nil, nil, fmt.Errorf("%w: unit index %d out of sequence", ErrInvalidGraph, idx)
		}
		if pop < 0 {
			return nil, nil, fmt.Errorf("%w: unit %d has negative population", ErrInvalidGraph, idx)
		}
		pops = append(pops, uint64(pop))
		areas = append(areas, area)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate units: %w", err)
	}

	if len(pops) != nodeCount {
		return nil, nil, fmt.Errorf("%w: expected %d units, found %d", ErrInvalidGraph, nodeCount, len(pops))
	}
	return pops, areas, nil
}

func (r *PostgresPartitionRepository) loadEdges(ctx context.Context, id string) ([]domain.Edge, error) {
	rows, err := r.db.Query(ctx, selectEdgesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.A, &e.B, &e.Length); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return edges, nil
}

// ============================================================
// SWEEPS
// ============================================================

const (
	insertRunSQL = `
		INSERT INTO sweep_runs (
			id, graph_id, outcome, all_converged, failed_lambdas,
			total_iterations, elapsed_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	insertResultSQL = `
		INSERT INTO sweep_results (
			run_id, lambda, converged, iterations, final_mu, mu_history,
			selected, selected_population, population_fraction,
			boundary_cost, area_cost, energy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	runColumns = `
		id, graph_id, outcome, all_converged, failed_lambdas,
		total_iterations, elapsed_ms, created_at
	`

	selectRunSQL = `SELECT` + runColumns + `FROM sweep_runs WHERE id = $1`

	selectRunsByGraphSQL = `SELECT` + runColumns + `FROM sweep_runs
		WHERE graph_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	selectResultsSQL = `
		SELECT
			lambda, converged, iterations, final_mu, mu_history,
			selected, selected_population, population_fraction,
			boundary_cost, area_cost, energy
		FROM sweep_results
		WHERE run_id = $1
		ORDER BY lambda
	`
)

// SaveSweep сохраняет прогон и строки по каждому λ в одной транзакции.
// Пустой RunID заменяется новым UUID.
func (r *PostgresPartitionRepository) SaveSweep(ctx context.Context, graphID string, result *domain.SweepResult) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresPartitionRepository.SaveSweep",
		telemetry.WithAttributes(attribute.String(telemetry.AttrGraphID, graphID)),
	)
	defer span.End()

	if result == nil {
		return errors.New("sweep result is nil")
	}
	if result.RunID == "" {
		result.RunID = uuid.NewString()
	}
	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrRunID, result.RunID))

	failed := result.FailedLambdas
	if failed == nil {
		failed = []float64{}
	}

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRunSQL,
			result.RunID,
			graphID,
			string(result.Outcome()),
			result.AllConverged,
			failed,
			result.TotalIterations,
			result.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, lambda := range result.Lambdas() {
			lr := NewLambdaResult(result.Results[lambda])
			if _, err := tx.Exec(ctx, insertResultSQL,
				result.RunID,
				lr.Lambda,
				lr.Converged,
				lr.Iterations,
				lr.FinalMu,
				lr.MuHistory,
				lr.Selected,
				lr.SelectedPopulation,
				lr.PopulationFraction,
				lr.BoundaryCost,
				lr.AreaCost,
				lr.Energy,
			); err != nil {
				return fmt.Errorf("insert result for lambda %v: %w", lambda, err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("%w: graph %s", ErrNotFound, graphID)
		}
		return fmt.Errorf("failed to save sweep: %w", err)
	}

	return nil
}

// GetSweep загружает прогон вместе с результатами по λ
func (r *PostgresPartitionRepository) GetSweep(ctx context.Context, runID string) (*SweepRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresPartitionRepository.GetSweep",
		telemetry.WithAttributes(attribute.String(telemetry.AttrRunID, runID)),
	)
	defer span.End()

	run, err := scanRun(r.db.QueryRow(ctx, selectRunSQL, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}

	rows, err := r.db.Query(ctx, selectResultsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sweep results: %w", err)
	}
	defer rows.Close()

	record := &SweepRecord{Run: *run}
	for rows.Next() {
		var lr LambdaResult
		if err := rows.Scan(
			&lr.Lambda,
			&lr.Converged,
			&lr.Iterations,
			&lr.FinalMu,
			&lr.MuHistory,
			&lr.Selected,
			&lr.SelectedPopulation,
			&lr.PopulationFraction,
			&lr.BoundaryCost,
			&lr.AreaCost,
			&lr.Energy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sweep result: %w", err)
		}
		record.Results = append(record.Results, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sweep results: %w", err)
	}

	return record, nil
}

// ListSweeps возвращает последние прогоны для графа, новые первыми
func (r *PostgresPartitionRepository) ListSweeps(ctx context.Context, graphID string, limit int) ([]*SweepRun, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresPartitionRepository.ListSweeps",
		telemetry.WithAttributes(attribute.String(telemetry.AttrGraphID, graphID)),
	)
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.Query(ctx, selectRunsByGraphSQL, graphID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	defer rows.Close()

	var runs []*SweepRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sweeps: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*SweepRun, error) {
	var (
		run     SweepRun
		outcome string
		created time.Time
	)
	if err := row.Scan(
		&run.ID,
		&run.GraphID,
		&outcome,
		&run.AllConverged,
		&run.FailedLambdas,
		&run.TotalIterations,
		&run.ElapsedMs,
		&created,
	); err != nil {
		return nil, err
	}
	run.Outcome = domain.Outcome(outcome)
	run.CreatedAt = created
	return &run, nil
}
