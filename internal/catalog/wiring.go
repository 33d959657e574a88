package catalog

import (
	"context"
	"fmt"

	"github.com/compozy/workflows/internal/executor"
	"github.com/compozy/workflows/internal/scheduler"
	"github.com/compozy/workflows/internal/workflow"
)

// Resolver adapts a Store to the workflow Engine's TaskResolver contract,
// translating a Task's executor + script location into an executor.Kind and
// invocation descriptor.
func (s *Store) Resolver() workflow.TaskResolver {
	return func(ctx context.Context, taskName string) (workflow.TaskBinding, error) {
		t, err := s.GetTask(ctx, taskName)
		if err != nil {
			return workflow.TaskBinding{}, err
		}
		descriptor := t.ScriptPath
		if descriptor == "" {
			descriptor = t.ScriptName
		}
		return workflow.TaskBinding{Kind: executor.Kind(t.Executor), Descriptor: descriptor}, nil
	}
}

// DeclaredParamsFunc adapts ParametersFor to the paramanalyzer.DeclaredParams
// contract.
func (s *Store) DeclaredParamsFunc() func(ctx context.Context, taskName string) ([]string, bool) {
	return s.ParametersFor
}

// ScriptPathFunc adapts task lookups to the paramanalyzer.ScriptPath
// contract, used when a task has no DB-declared parameters.
func (s *Store) ScriptPathFunc() func(taskName string) (string, bool) {
	return func(taskName string) (string, bool) {
		t, err := s.GetTask(context.Background(), taskName)
		if err != nil || t.ScriptPath == "" {
			return "", false
		}
		return t.ScriptPath, true
	}
}

// schedulerCatalog adapts a Store to the Task Scheduler's TaskCatalog
// contract (scheduler.TaskInfo decouples the scheduler package from this
// one's concrete Task type).
type schedulerCatalog struct{ s *Store }

// SchedulerCatalog adapts s to scheduler.TaskCatalog.
func (s *Store) SchedulerCatalog() scheduler.TaskCatalog {
	return &schedulerCatalog{s: s}
}

func (c *schedulerCatalog) GetTask(ctx context.Context, taskName string) (scheduler.TaskInfo, error) {
	t, err := c.s.GetTask(ctx, taskName)
	if err != nil {
		return scheduler.TaskInfo{}, err
	}
	return scheduler.TaskInfo{
		TaskName:     t.TaskName,
		UserTaskName: t.UserTaskName,
		Executor:     executor.Kind(t.Executor),
		ScriptPath:   t.ScriptPath,
		CancelledYN:  t.CancelledYN,
	}, nil
}

func (c *schedulerCatalog) ParametersFor(ctx context.Context, taskName string) ([]string, bool) {
	return c.s.ParametersFor(ctx, taskName)
}

// ParamOrderFor adapts ParametersFor to the executor.ParamOrder contract
// the stored-procedure/stored-function executors bind positional
// arguments with.
func (s *Store) ParamOrderFor(ctx context.Context, descriptor string) ([]string, error) {
	names, ok := s.ParametersFor(ctx, descriptor)
	if !ok {
		return nil, fmt.Errorf("catalog: no declared parameters for %q", descriptor)
	}
	return names, nil
}
