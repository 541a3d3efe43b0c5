package job

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chopshop/server/internal/module/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStepTemplate_Validate(t *testing.T) {
	valid := StepTemplate{
		Name:          "generate_video",
		EndpointClass: "video",
		Path:          "/api/v1/video/generate",
		Method:        "POST",
	}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	badMethod := valid
	badMethod.Method = "PATCH"
	assert.Error(t, badMethod.Validate())

	noPath := valid
	noPath.Path = ""
	assert.Error(t, noPath.Validate())

	badClass := valid
	badClass.EndpointClass = "hologram"
	assert.Error(t, badClass.Validate())

	badRetry := valid
	badRetry.RetryMaxAttempts = -1
	assert.Error(t, badRetry.Validate())
}

func TestWorkflowTemplate_ParseSteps(t *testing.T) {
	w := &WorkflowTemplate{
		ItemCode: "C1-15",
		Steps:    []byte(`[{"name":"generate_video","endpoint_class":"video","path":"/api/v1/video/generate","method":"POST","required":true}]`),
	}
	steps, err := w.ParseSteps()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Required)

	empty := &WorkflowTemplate{ItemCode: "X", Steps: []byte(`[]`)}
	_, err = empty.ParseSteps()
	assert.Error(t, err)

	malformed := &WorkflowTemplate{ItemCode: "X", Steps: []byte(`{not json`)}
	_, err = malformed.ParseSteps()
	assert.Error(t, err)
}

func TestBuildSteps_PreservesOrderAndTemplateFields(t *testing.T) {
	templates := []StepTemplate{
		{
			Name: "tts", EndpointClass: "tts", Path: "/api/v1/video/send_tts", Method: "POST",
			Condition: &Condition{Field: "use_tts", Op: OpEq, Value: true},
			Params:    map[string]interface{}{"text": "${script}"},
		},
		{
			Name: "generate_video", EndpointClass: "video", Path: "/api/v1/video/generate", Method: "POST",
			StatusPath: "/api/v1/video/awsResult", CancelPath: "/api/v1/video/cancel",
			Params: map[string]interface{}{"duration": 30}, Required: true, TimeoutSecs: 120,
			RetryMaxAttempts: 2, RetryBaseDelaySecs: 5,
		},
	}

	n := 0
	steps, err := BuildSteps("job-1", templates, func() string {
		n++
		return fmt.Sprintf("step-%d", n)
	})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, 0, steps[0].Index)
	assert.Equal(t, "tts", steps[0].Name)
	assert.Equal(t, StepPending, steps[0].Status)
	cond, err := steps[0].ParseCondition()
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.True(t, cond.Evaluate(map[string]interface{}{"use_tts": true}))

	assert.Equal(t, 1, steps[1].Index)
	assert.Equal(t, "/api/v1/video/awsResult", steps[1].StatusPath)
	assert.Equal(t, "/api/v1/video/cancel", steps[1].CancelPath)
	assert.Equal(t, 120, steps[1].TimeoutSecs)
	assert.Equal(t, float64(30), steps[1].ParamsMap()["duration"])
	assert.Equal(t, provider.RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second}, steps[1].RetryPolicy())
	assert.Equal(t, provider.RetryPolicy{}, steps[0].RetryPolicy())

	nilCond, err := steps[1].ParseCondition()
	require.NoError(t, err)
	assert.Nil(t, nilCond)
}

func TestSeedTemplates_AllParseAndValidate(t *testing.T) {
	repo := newMemoryRepository()
	require.NoError(t, SeedTemplates(context.Background(), repo, zap.NewNop()))

	for _, w := range seedTemplates() {
		steps, err := w.ParseSteps()
		require.NoError(t, err, "template %s", w.ItemCode)
		assert.NotEmpty(t, steps, "template %s", w.ItemCode)

		// Async steps must know where to poll.
		for _, s := range steps {
			if s.StatusPath != "" {
				assert.NotEmpty(t, s.Path, "template %s step %s", w.ItemCode, s.Name)
			}
		}
	}
}
