// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/internal/scheduler"
	"github.com/truecivic/parliament-service/pkg/constants"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// pageLimit reads the page size from flow parameters.
func pageLimit(params map[string]any) int {
	if raw, ok := params["limit"]; ok {
		if limit, ok := raw.(float64); ok && limit > 0 {
			return int(limit)
		}
		if limit, ok := raw.(int); ok && limit > 0 {
			return limit
		}
	}
	return constants.DefaultFetchLimit
}

// sinceWindow derives the incremental window from the last successful run of
// the source, with a one-day overlap so boundary records are never missed. A
// full backfill passes {"full": true}.
func sinceWindow(ctx context.Context, fetchLogs port.FetchLogRepository, source string, params map[string]any) port.FetchWindow {
	if full, ok := params["full"].(bool); ok && full {
		return port.FetchWindow{}
	}

	status := model.FetchSuccess
	logs, _, err := fetchLogs.GetByFilter(ctx, model.FetchLogFilter{
		Source: &source,
		Status: &status,
	}, paging.Params{Limit: 1})
	if err != nil || len(logs) == 0 {
		return port.FetchWindow{}
	}
	return port.FetchWindow{Since: logs[0].CreatedAt.AddDate(0, 0, -1)}
}

// registerFlows declares the ingestion flows and their deployments. Each flow
// paginates its catalogue listing until an empty page, persisting as it goes;
// detail fan-out happens inside the ingestors.
func registerFlows(registry *scheduler.Registry, ing ingestors, poolTag string) {
	// Pagination continues until an empty page: a page of entirely
	// unchanged records still advances the walk.
	paginate := func(run func(ctx context.Context, page port.FetchPage) (model.UpsertResult, error)) scheduler.TaskFunc {
		return func(ctx context.Context, params map[string]any) (any, error) {
			limit := pageLimit(params)
			offset := 0
			var total model.UpsertResult
			for {
				result, err := run(ctx, port.FetchPage{Limit: limit, Offset: offset})
				if err != nil {
					return nil, err
				}
				total.Add(result)
				if result.Created+result.Updated+result.Unchanged == 0 {
					break
				}
				offset += limit
			}
			return map[string]any{
				"created":   total.Created,
				"updated":   total.Updated,
				"unchanged": total.Unchanged,
			}, nil
		}
	}

	mustRegister := func(flow scheduler.Flow) {
		if err := registry.RegisterFlow(flow); err != nil {
			log.Fatalf("failed to register flow %s: %v", flow.Name, err)
		}
	}
	mustDeploy := func(deployment scheduler.Deployment) {
		deployment.PoolTag = poolTag
		if err := registry.RegisterDeployment(deployment); err != nil {
			log.Fatalf("failed to register deployment %s: %v", deployment.Name, err)
		}
	}

	mustRegister(scheduler.Flow{
		Name: "bills-sync",
		Tasks: []scheduler.Task{{
			Name: "ingest-bills",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				window := sinceWindow(ctx, ing.fetchLogs, "openparliament.bills", params)
				return paginate(func(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
					return ing.bills.IngestPage(ctx, page, window)
				})(ctx, params)
			},
		}},
	})

	mustRegister(scheduler.Flow{
		Name: "politicians-sync",
		Tasks: []scheduler.Task{{
			Name: "ingest-politicians",
			Run: paginate(func(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
				return ing.politicians.IngestPage(ctx, page)
			}),
		}},
	})

	mustRegister(scheduler.Flow{
		Name: "votes-sync",
		Tasks: []scheduler.Task{{
			Name: "ingest-votes",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				window := sinceWindow(ctx, ing.fetchLogs, "openparliament.votes", params)
				return paginate(func(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
					return ing.votes.IngestPage(ctx, page, window)
				})(ctx, params)
			},
		}},
	})

	mustRegister(scheduler.Flow{
		Name: "committees-sync",
		Tasks: []scheduler.Task{{
			Name: "ingest-committees",
			Run: paginate(func(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
				return ing.committees.IngestPage(ctx, page)
			}),
		}},
	})

	mustRegister(scheduler.Flow{
		Name: "debates-sync",
		Tasks: []scheduler.Task{{
			Name: "ingest-debates",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				window := sinceWindow(ctx, ing.fetchLogs, "openparliament.debates", params)
				return paginate(func(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
					return ing.debates.IngestPage(ctx, page, window)
				})(ctx, params)
			},
			Timeout: 30 * time.Minute,
		}},
	})

	// Schedules are UTC. Bills and votes hourly, debates every six hours,
	// membership and committee rosters daily.
	mustDeploy(scheduler.Deployment{
		Name: "bills-hourly", FlowName: "bills-sync",
		Schedule: "5 * * * *", Exclusive: true,
		DefaultParams: map[string]any{"limit": constants.DefaultFetchLimit},
	})
	mustDeploy(scheduler.Deployment{
		Name: "votes-hourly", FlowName: "votes-sync",
		Schedule: "20 * * * *", Exclusive: true,
		DefaultParams: map[string]any{"limit": constants.DefaultFetchLimit},
	})
	mustDeploy(scheduler.Deployment{
		Name: "debates-six-hourly", FlowName: "debates-sync",
		Schedule: "40 */6 * * *", Exclusive: true,
		DefaultParams: map[string]any{"limit": constants.DefaultFetchLimit},
	})
	mustDeploy(scheduler.Deployment{
		Name: "politicians-daily", FlowName: "politicians-sync",
		Schedule: "10 6 * * *", Exclusive: true,
		DefaultParams: map[string]any{"limit": constants.DefaultFetchLimit},
	})
	mustDeploy(scheduler.Deployment{
		Name: "committees-daily", FlowName: "committees-sync",
		Schedule: "30 6 * * *", Exclusive: true,
		DefaultParams: map[string]any{"limit": constants.DefaultFetchLimit},
	})
}
