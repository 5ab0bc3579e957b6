package test

import (
	model "github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
)

// NewTestExecutionContext creates an ExecutionContext holding data.
func NewTestExecutionContext(data map[string]interface{}) model.ExecutionContext {
	ec := model.NewExecutionContext()
	for k, v := range data {
		ec.Put(k, v)
	}
	return ec
}

// NewTestStepExecution creates a started step of a new job execution of jobName. jobData
// seeds the job execution context, as values promoted by earlier steps would.
func NewTestStepExecution(jobName, stepName string, jobData map[string]interface{}) *model.StepExecution {
	je := model.NewJobExecution(jobName, model.NewJobParameters())
	je.MarkAsStarted()
	for k, v := range jobData {
		je.ExecutionContext.Put(k, v)
	}
	se := model.NewStepExecution(je, stepName)
	je.AddStepExecution(se)
	se.MarkAsStarted()
	return se
}
