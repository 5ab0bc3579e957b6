package model

// ExecutionContext is a key-value store for sharing state across job and step executions.
// Values are held in memory for the life of the process and are never serialized.
type ExecutionContext map[string]interface{}

// NewExecutionContext creates a new empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put sets a value in the ExecutionContext with the specified key and value.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get retrieves the value for the specified key. Returns nil and false if the value does not exist.
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	val, ok := ec[key]
	return val, ok
}

// GetString retrieves the value for the specified key as a string.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	val, ok := ec[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves the value for the specified key as an int.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	switch v := ec[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Remove removes the specified key from the ExecutionContext.
func (ec ExecutionContext) Remove(key string) {
	delete(ec, key)
}

// Copy creates a shallow copy of the ExecutionContext.
func (ec ExecutionContext) Copy() ExecutionContext {
	newEC := make(ExecutionContext, len(ec))
	for k, v := range ec {
		newEC[k] = v
	}
	return newEC
}

// Lookup retrieves a typed value from an ExecutionContext.
func Lookup[T any](ec ExecutionContext, key string) (T, bool) {
	var zero T
	val, ok := ec[key]
	if !ok {
		return zero, false
	}
	typed, ok := val.(T)
	return typed, ok
}

// ExecutionContextPromotion defines the keys copied from a step's ExecutionContext into the
// job's ExecutionContext when the step completes.
type ExecutionContextPromotion struct {
	Keys []string `yaml:"keys,omitempty"`
	// JobLevelKeys renames promoted keys at the job level.
	JobLevelKeys map[string]string `yaml:"job-level-keys,omitempty"`
}

// Promote copies the configured keys from stepEC into jobEC. Missing keys are skipped and
// returned so callers can log them.
func (p *ExecutionContextPromotion) Promote(stepEC, jobEC ExecutionContext) (missing []string) {
	if p == nil {
		return nil
	}
	for _, key := range p.Keys {
		val, ok := stepEC.Get(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		target := key
		if renamed, ok := p.JobLevelKeys[key]; ok && renamed != "" {
			target = renamed
		}
		jobEC.Put(target, val)
	}
	return missing
}

// JobParameters holds the parameters a job was launched with.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates a new instance of JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put sets a value in JobParameters with the specified key and value.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// GetString retrieves the value for the specified key as a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	val, ok := jp.Params[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}
