package tool

import (
	"context"

	"github.com/parleyhq/parley/knowledge"
	"github.com/parleyhq/parley/store"
)

// RegisterDefaults registers every built-in tool plus all active custom
// tools from the store. Built-ins are protected from unregistration.
func RegisterDefaults(ctx context.Context, r *Registry, sandbox *Sandbox, workspaceDir string, kb *knowledge.Base, st store.Store, delegator Delegator) error {
	r.RegisterBuiltin(NewWebSearch())
	r.RegisterBuiltin(NewFileManager(workspaceDir))
	r.RegisterBuiltin(NewCodeExecutor(sandbox))
	r.RegisterBuiltin(NewDateTime())
	r.RegisterBuiltin(NewKnowledgeSearch(kb))
	r.RegisterBuiltin(NewAgentManager(st))
	r.RegisterBuiltin(NewModelManager(st))
	r.RegisterBuiltin(NewToolCreator(st, r, sandbox))
	r.RegisterBuiltin(NewSkillCreator(st))
	r.RegisterBuiltin(NewWorkflowManager(st))
	if delegator != nil {
		r.RegisterBuiltin(NewDelegateAgent(st, delegator))
	}

	customs, err := st.ListCustomTools(ctx)
	if err != nil {
		return err
	}
	for _, ct := range customs {
		if ct.IsActive {
			r.Register(NewDynamic(ct, sandbox))
		}
	}
	return nil
}
