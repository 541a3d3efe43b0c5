package job

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chopshop/server/internal/module/provider"
	"go.uber.org/zap"
)

// SeedTemplates upserts the workflow templates for the storefront items.
// Safe to run on every startup.
func SeedTemplates(ctx context.Context, store TemplateStore, log *zap.Logger) error {
	templates := seedTemplates()
	for _, t := range templates {
		if err := store.UpsertTemplate(ctx, t); err != nil {
			return fmt.Errorf("seed workflow template %s: %w", t.ItemCode, err)
		}
	}
	log.Info("workflow templates seeded", zap.Int("templates", len(templates)))
	return nil
}

func mustSteps(steps []StepTemplate) json.RawMessage {
	data, err := json.Marshal(steps)
	if err != nil {
		panic(err)
	}
	return data
}

func seedTemplates() []*WorkflowTemplate {
	imageSteps := mustSteps([]StepTemplate{
		{
			Name:          "generate_image",
			EndpointClass: provider.ClassVideo,
			Path:          "/api/v1/userFaceSwapTask/add",
			Method:        http.MethodPost,
			StatusPath:    "/api/v1/userFaceSwapTask/get",
			CancelPath:    "/api/v1/userFaceSwapTask/cancel",
			Params: map[string]interface{}{
				"source_image": "${source_image}",
				"prompt":       "${prompt}",
			},
			Required:         true,
			TimeoutSecs:      120,
			RetryMaxAttempts: 3,
		},
	})

	videoSteps := func(duration int) json.RawMessage {
		return mustSteps([]StepTemplate{
			{
				Name:          "generate_voiceover",
				EndpointClass: provider.ClassTTS,
				Path:          "/api/v1/video/send_tts",
				Method:        http.MethodPost,
				Params: map[string]interface{}{
					"text":     "${script}",
					"voice_id": "${voice_id}",
				},
				Condition:        &Condition{Field: "use_tts", Op: OpEq, Value: true},
				Required:         false,
				RetryMaxAttempts: 2,
			},
			{
				Name:          "generate_video",
				EndpointClass: provider.ClassVideo,
				Path:          "/api/v1/video/generate",
				Method:        http.MethodPost,
				StatusPath:    "/api/v1/video/awsResult",
				CancelPath:    "/api/v1/video/cancel",
				Params: map[string]interface{}{
					"anchor_id": "${avatar_id}",
					"audio_src": "${step0_result.audio_url}",
					"duration":  duration,
					"title":     "${title}",
				},
				Required:         true,
				TimeoutSecs:      120,
				RetryMaxAttempts: 3,
			},
		})
	}

	voiceoverSteps := mustSteps([]StepTemplate{
		{
			Name:          "generate_voiceover",
			EndpointClass: provider.ClassTTS,
			Path:          "/api/v1/video/send_tts",
			Method:        http.MethodPost,
			Params: map[string]interface{}{
				"text":     "${script}",
				"voice_id": "${voice_id}",
			},
			Required:         true,
			TimeoutSecs:      120,
			RetryMaxAttempts: 2,
		},
	})

	voiceCloneSteps := mustSteps([]StepTemplate{
		{
			Name:          "train_voice",
			EndpointClass: provider.ClassVoice,
			Path:          "/api/v1/userVoice/training",
			Method:        http.MethodPost,
			StatusPath:    "/api/v1/userVoice/completedRecord",
			Params: map[string]interface{}{
				"audio_sample": "${audio_sample}",
				"name":         "${voice_name}",
			},
			Required:         true,
			TimeoutSecs:      300,
			RetryMaxAttempts: 3,
		},
	})

	templates := []*WorkflowTemplate{
		{ID: "wf_a1_ig", ItemCode: "A1-IG", Steps: imageSteps, Active: true},
		{ID: "wf_a2_bh", ItemCode: "A2-BH", Steps: imageSteps, Active: true},
		{ID: "wf_a3_4k", ItemCode: "A3-4K", Steps: imageSteps, Active: true},
		{ID: "wf_a4_br", ItemCode: "A4-BR", Steps: imageSteps, Active: true},
		{ID: "wf_c1_15", ItemCode: "C1-15", Steps: videoSteps(15), Active: true},
		{ID: "wf_c2_30", ItemCode: "C2-30", Steps: videoSteps(30), Active: true},
		{ID: "wf_c3_60", ItemCode: "C3-60", Steps: videoSteps(60), Active: true},
		{ID: "wf_d1_vo30", ItemCode: "D1-VO30", Steps: voiceoverSteps, Active: true},
		{ID: "wf_d4_5pk", ItemCode: "D4-5PK", Steps: voiceoverSteps, Active: true},
		{ID: "wf_d2_clone", ItemCode: "D2-CLONE", Steps: voiceCloneSteps, Active: true},
		{ID: "wf_d3_clpro", ItemCode: "D3-CLPRO", Steps: voiceCloneSteps, Active: true},
	}
	return templates
}
