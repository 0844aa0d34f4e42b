package provider

import "strings"

// Prompt names. Each can be overridden through the prompts section of the
// configuration.
const (
	PromptOllama                 = "ollama"
	PromptOpenAISystem           = "openai_system"
	PromptOpenAIUser             = "openai_user"
	PromptGeminiSystem           = "gemini_system"
	PromptGeminiSystemContext    = "gemini_system_context"
	PromptGeminiTranslate        = "gemini_translate"
	PromptGeminiAutoDetect       = "gemini_auto_detect"
	PromptGeminiTranslateContext = "gemini_translate_context"
	PromptGeminiAutoContext      = "gemini_auto_detect_context"
)

const geminiGuidelines = `You are a professional translator for a Minecraft server chat system. Your task is to translate messages between players accurately while preserving gaming context and informal tone. Guidelines:
- Preserve gaming terminology, slang, and Minecraft-specific terms
- Keep the informal, casual tone typical of gaming chat
- Don't translate proper nouns unless contextually necessary
%s- For ambiguous words, choose meaning based on gaming/chat context
- Return ONLY the translated text, no explanations or extra formatting
- If the text is already in the target language, return it unchanged
- Preserve any special characters or formatting symbols`

var defaultPrompts = map[string]string{
	PromptOllama: `You are a professional translator specializing in gaming terminology and casual Minecraft chat.
Translate the following {sourceLang} text to {targetLang} while following these rules strictly:

1. Provide a direct translation of the text ONLY. Do NOT add, remove, or change any content.
2. Do NOT translate or modify placeholders or variables (like %player%, {player}, {item}, ${amount}, {0}, etc.).
3. Do NOT translate or modify command syntax (like /warp, /msg, /give).
4. Do NOT translate JSON keys or structure. Only translate text values.
5. Preserve punctuation, spacing, capitalization, and emoji exactly as in the input.
6. Maintain the informal or gaming tone appropriate for in-game chat.
7. Do not include explanations, quotes, or additional text. Return ONLY the translated content.

Text to translate:
{message}`,

	PromptOpenAISystem: `You are a professional translator specializing in gaming terminology and casual Minecraft chat.
Your role is to provide accurate, natural translations while preserving game-specific elements.
Always respond with ONLY the translated text, without any explanations, notes, or additional content.`,

	PromptOpenAIUser: `Translate from {sourceLang} to {targetLang}. Follow these rules strictly:
1) Directly translate content only; do not add, remove, or change anything.
2) Do not translate placeholders/variables (like %player%, {player}, {item}, ${amount}, {0}) or command syntax (e.g. /warp, /msg).
3) Only translate text values; do not modify JSON keys or structure.
4) Preserve punctuation, spacing, capitalization, emoji, and the informal gaming tone.
Return ONLY the translated text. No explanations, notes, quotes, or extra content.

Text:
{message}`,

	PromptGeminiSystem:        strings.Replace(geminiGuidelines, "%s", "", 1),
	PromptGeminiSystemContext: strings.Replace(geminiGuidelines, "%s", "- Player names in the 'Online players' list should not be translated\n", 1),

	PromptGeminiTranslate:        "Translate the following text from {sourceLang} to {targetLang}:\n\n{message}",
	PromptGeminiAutoDetect:       "Automatically detect the language of the following text and translate it to {targetLang}:\n\n{message}",
	PromptGeminiTranslateContext: "Online players: {playerContext}\n\nTranslate the following text from {sourceLang} to {targetLang}:\n\n{message}",
	PromptGeminiAutoContext:      "Online players: {playerContext}\n\nAutomatically detect the language of the following text and translate it to {targetLang}:\n\n{message}",
}

// Prompts renders prompt templates. Placeholders are written {name}.
type Prompts struct {
	templates map[string]string
}

// NewPrompts returns the built-in prompts with overrides applied. Unknown
// override names are kept so callers can add their own.
func NewPrompts(overrides map[string]string) *Prompts {
	templates := make(map[string]string, len(defaultPrompts)+len(overrides))
	for k, v := range defaultPrompts {
		templates[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) != "" {
			templates[k] = v
		}
	}
	return &Prompts{templates: templates}
}

// Render fills the named template. A missing template renders as "".
func (p *Prompts) Render(name string, vars map[string]string) string {
	tmpl := p.templates[name]
	if len(vars) == 0 {
		return tmpl
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func promptVars(text, from, to string) map[string]string {
	return map[string]string{
		"sourceLang": from,
		"targetLang": to,
		"message":    text,
	}
}
