package orchestrator

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voyago/voyago-backend/internal/agents"
	"github.com/voyago/voyago-backend/internal/intent"
	"github.com/voyago/voyago-backend/internal/store"
)

// dispatch fans out one capability call per implied service type, joins on
// all of them, and persists each result in dispatch order. Every call gets
// its own timeout so one slow provider degrades only its own section; the
// turn's outer deadline abandons whatever has not finished.
func (o *Orchestrator) dispatch(ctx context.Context, sessionID string, slots intent.Slots) ([]agents.SearchResult, []string, error) {
	services := dispatchOrder(slots.ServiceTypes)
	results := make([]agents.SearchResult, len(services))

	var wg sync.WaitGroup
	for i, svc := range services {
		agent := o.registry.For(svc)
		if agent == nil {
			results[i] = agents.SearchResult{
				Service:  svc,
				Degraded: true,
				Note:     "no capability for service",
			}
			continue
		}

		wg.Add(1)
		go func(i int, svc intent.ServiceType, agent agents.Agent) {
			defer wg.Done()

			actx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
			defer cancel()

			res, err := agent.Search(actx, svc, slots)
			if err != nil || res == nil {
				o.log.WithError(err).WithFields(logrus.Fields{
					"agent":   agent.Name(),
					"service": svc,
				}).Warn("capability call degraded")
				res = &agents.SearchResult{
					Service:  svc,
					Provider: agent.Name(),
					Degraded: true,
					Note:     agents.ProviderUnavailableNote,
				}
			}
			results[i] = *res
		}(i, svc, agent)
	}
	wg.Wait()

	// Results are persisted even when the join outlived the turn deadline:
	// a timed-out capability is a degraded section, not a lost record.
	wctx := context.WithoutCancel(ctx)
	agentsCalled := make([]string, 0, len(services))
	for i, res := range results {
		name := res.Provider
		if name == "" {
			name = string(res.Service) + "_agent"
		}
		agentsCalled = append(agentsCalled, name)

		if _, err := o.store.AppendAgentOutput(wctx, sessionID, name, "task_"+string(services[i]),
			store.OutputSearchResults, res); err != nil {
			return nil, nil, err
		}
	}
	return results, agentsCalled, nil
}

// dispatchOrder sorts the requested services into the fixed section order
// and drops duplicates.
func dispatchOrder(requested []intent.ServiceType) []intent.ServiceType {
	seen := make(map[intent.ServiceType]bool, len(requested))
	for _, svc := range requested {
		seen[svc] = true
	}
	var ordered []intent.ServiceType
	for _, svc := range intent.KnownServiceTypes {
		if seen[svc] {
			ordered = append(ordered, svc)
		}
	}
	return ordered
}
