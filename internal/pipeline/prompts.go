package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"producer/internal/domain"
)

const trendAnalysisTemplate = `You are an expert social media analyst specializing in viral short-form content.

TASK: Analyze the following viral content records and identify the patterns that made them successful. Then generate %d NEW unique headlines using these patterns but with DIFFERENT topics.

VIRAL CONTENT TO ANALYZE:
%s

OUTPUT FORMAT (JSON):
{
    "generated_headlines": [
        {
            "id": "hl_1",
            "headline": "...",
            "source_pattern": "Pattern from viral record #3",
            "hook_type": "curiosity_gap"
        }
    ]
}

CONSTRAINTS:
- Headlines must be 5-15 words
- Create curiosity without being clickbait
- Vary the hook types across headlines`

const topicHeadlineTemplate = `You are a creative content strategist.

TASK: Generate %d viral headlines based SPECIFICALLY on this topic:
TOPIC: %q

Apply viral psychology (curiosity, fear, benefit) to this topic.

OUTPUT FORMAT (JSON):
{
    "generated_headlines": [
        {
            "id": "hl_1",
            "headline": "...",
            "source_pattern": "topic",
            "hook_type": "curiosity_gap"
        }
    ]
}`

const scriptWriterTemplate = `You are an expert social media producer with deep understanding of consumer psychology.

TASK: Write scripts for the following headlines. For EACH script you MUST explain your reasoning. The reasoning field is CRITICAL and must never be empty.

HEADLINES TO WRITE:
%s

OUTPUT FORMAT (JSON array):
[
    {
        "id": "hl_1",
        "headline": "Original headline",
        "caption": "The actual script/caption (50-150 words)",
        "cta": "Call to action",
        "reasoning": "Why this hook creates tension and why this CTA works",
        "hook_type": "curiosity_gap"
    }
]

SCRIPT REQUIREMENTS:
- First line must create immediate pattern interrupt
- Build tension in the middle, deliver a satisfying payoff
- CTA must feel natural, not forced`

const visualPlannerTemplate = `You are a video producer planning the visual execution of vertical short-form videos.

TASK: For each script, create a detailed visual blueprint for video production.

SCRIPTS TO PLAN:
%s

OUTPUT FORMAT (JSON array):
[
    {
        "id": "hl_1",
        "video_prompt": "Cinematic B-roll description optimized for AI video generation (30-50 words)",
        "text_lines": ["Line 1 (max 20 chars)", "Line 2"],
        "highlight_words": [0, 2],
        "duration_seconds": 8
    }
]

VIDEO PROMPT GUIDELINES:
- Focus on abstract, emotional visuals; avoid specific people or faces
- Use cinematic terms such as slow motion, macro shot, golden hour lighting

TEXT LAYOUT RULES:
- Max 20 characters per line, split at natural word breaks
- Highlight 1-2 key words per headline`

const refineTemplate = `You are refining one content item based on user feedback.

CURRENT ITEM:
%s

USER FEEDBACK:
%s

Generate an improved version that addresses the feedback while keeping the same intent.

OUTPUT FORMAT: a single JSON object with the same fields as the current item, containing only the fields you changed plus the id.`

func trendAnalysisPrompt(count int, records []domain.ContentRecord) string {
	type trendView struct {
		Headline   string `json:"headline"`
		Transcript string `json:"transcript,omitempty"`
		Views      int64  `json:"views"`
		Likes      int64  `json:"likes"`
		Comments   int64  `json:"comments"`
	}
	views := make([]trendView, 0, len(records))
	for _, r := range records {
		views = append(views, trendView{
			Headline:   r.Headline,
			Transcript: r.Transcript,
			Views:      r.Views,
			Likes:      r.Likes,
			Comments:   r.Comments,
		})
	}
	return fmt.Sprintf(trendAnalysisTemplate, count, mustJSON(views))
}

func topicHeadlinePrompt(count int, topic string) string {
	return fmt.Sprintf(topicHeadlineTemplate, count, topic)
}

func scriptWriterPrompt(headlines []domain.HeadlineItem) string {
	type headlineView struct {
		ID       string `json:"id"`
		Headline string `json:"headline"`
		HookType string `json:"hook_type,omitempty"`
	}
	views := make([]headlineView, 0, len(headlines))
	for _, h := range headlines {
		views = append(views, headlineView{ID: h.ID, Headline: h.Headline})
	}
	return fmt.Sprintf(scriptWriterTemplate, mustJSON(views))
}

func visualPlannerPrompt(scripts []domain.ScriptItem) string {
	type scriptView struct {
		ID       string `json:"id"`
		Headline string `json:"headline"`
		Caption  string `json:"caption"`
		CTA      string `json:"cta,omitempty"`
	}
	views := make([]scriptView, 0, len(scripts))
	for _, s := range scripts {
		views = append(views, scriptView{ID: s.ID, Headline: s.Headline, Caption: s.Caption, CTA: s.CTA})
	}
	return fmt.Sprintf(visualPlannerTemplate, mustJSON(views))
}

func refinePrompt(item any, feedback string) string {
	return fmt.Sprintf(refineTemplate, mustJSON(item), strings.TrimSpace(feedback))
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
