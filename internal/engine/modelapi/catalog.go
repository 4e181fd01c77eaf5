package modelapi

import (
	"sort"
	"strings"

	"clipflow/internal/engine/graph"
)

const (
	CategoryText              = "text-generation"
	CategoryImageGeneration   = "image-generation"
	CategoryVideoGeneration   = "video-generation"
	CategoryImageEditing      = "image-editing"
	CategoryBackgroundRemoval = "background-removal"
	CategoryUpscaling         = "upscaling"
)

// DefaultCost is charged for models missing from the catalog.
const DefaultCost = 10

type Model struct {
	ID          string `json:"modelId"`
	Name        string `json:"modelName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CostPerRun  int64  `json:"costPerRun"`
}

var curated = []Model{
	{"openai/gpt-5", "GPT-5", "Coding, writing and reasoning", CategoryText, 2},
	{"openai/gpt-5-mini", "GPT-5 Mini", "Faster, cheaper GPT-5", CategoryText, 1},
	{"openai/gpt-5-nano", "GPT-5 Nano", "Fastest, most cost-effective GPT-5 model", CategoryText, 1},

	{"black-forest-labs/flux-1.1-pro", "Flux 1.1 Pro", "Excellent image quality and prompt adherence", CategoryImageGeneration, 2},
	{"black-forest-labs/flux-1.1-pro-ultra", "Flux 1.1 Pro Ultra", "Ultra high-quality 4MP images", CategoryImageGeneration, 3},
	{"stability-ai/sdxl", "Stable Diffusion XL", "High-quality image generation with great detail", CategoryImageGeneration, 1},
	{"google/imagen-4", "Google Imagen 4", "Flagship image generation model", CategoryImageGeneration, 2},
	{"google/imagen-4-fast", "Google Imagen 4 Fast", "When speed matters more than quality", CategoryImageGeneration, 1},
	{"ideogram-ai/ideogram-v3-turbo", "Ideogram V3 Turbo", "Fast images with excellent text rendering", CategoryImageGeneration, 1},
	{"recraft-ai/recraft-v3", "Recraft V3", "Text-to-image with long text generation", CategoryImageGeneration, 4},

	{"google/veo-3.1", "Google Veo 3.1", "High-fidelity video with context-aware audio", CategoryVideoGeneration, 10},
	{"google/veo-3.1-fast", "Google Veo 3.1 Fast", "Faster, cheaper version of Veo 3.1", CategoryVideoGeneration, 6},
	{"luma/ray-2-720p", "Luma Ray 2 (720p)", "5s and 9s 720p videos", CategoryVideoGeneration, 8},
	{"luma/ray-flash-2-720p", "Luma Ray Flash 2 (720p)", "Faster and cheaper than Ray 2", CategoryVideoGeneration, 5},
	{"minimax/video-01", "Minimax Video-01", "6s videos from prompts or images", CategoryVideoGeneration, 8},
	{"runwayml/gen4-turbo", "Runway Gen-4 Turbo", "5s and 10s 720p videos", CategoryVideoGeneration, 10},

	{"black-forest-labs/flux-fill-pro", "Flux Fill Pro", "Inpainting and outpainting", CategoryImageEditing, 2},
	{"black-forest-labs/flux-kontext-pro", "Flux Kontext Pro", "Text-based image editing", CategoryImageEditing, 2},
	{"google/nano-banana-pro", "Google Nano Banana Pro", "Image editing model", CategoryImageEditing, 2},
	{"ideogram-ai/ideogram-v2", "Ideogram V2", "Inpainting and prompt comprehension", CategoryImageEditing, 1},

	{"recraft-ai/recraft-remove-background", "Recraft Background Removal", "Automated background removal", CategoryBackgroundRemoval, 1},
	{"bria/remove-background", "Bria Remove Background", "Commercial-ready background removal", CategoryBackgroundRemoval, 1},

	{"nightmareai/real-esrgan", "Real-ESRGAN", "Image upscaling with face correction", CategoryUpscaling, 1},
	{"philz1337x/crystal-upscaler", "Crystal Upscaler", "Upscaler for portraits and products", CategoryUpscaling, 2},
	{"topazlabs/image-upscale", "Topaz Image Upscale", "Professional-grade image upscaling", CategoryUpscaling, 3},
}

// Catalog is the set of models offered to workflows with their credit price.
type Catalog struct {
	models      map[string]Model
	defaultCost int64
}

func NewCatalog(defaultCost int64) *Catalog {
	if defaultCost <= 0 {
		defaultCost = DefaultCost
	}
	c := &Catalog{models: make(map[string]Model, len(curated)), defaultCost: defaultCost}
	for _, m := range curated {
		c.models[m.ID] = m
	}
	return c
}

// Get looks a model up, ignoring a ":version" suffix.
func (c *Catalog) Get(id string) (Model, bool) {
	m, ok := c.models[baseID(id)]
	return m, ok
}

// Models lists the catalog, optionally filtered by category, sorted by id.
func (c *Catalog) Models(category string) []Model {
	var out []Model
	for _, m := range c.models {
		if category == "" || m.Category == category {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Cost(id string) int64 {
	if m, ok := c.Get(id); ok {
		return m.CostPerRun
	}
	return c.defaultCost
}

// Inputs returns the ports a model takes, derived from its category.
func (c *Catalog) Inputs(id string) []graph.Port {
	m, _ := c.Get(id)
	prompt := graph.Port{Name: "prompt", Type: graph.PortString, Required: true}
	image := graph.Port{Name: "image", Type: graph.PortImage}
	mask := graph.Port{Name: "mask", Type: graph.PortImage}

	switch m.Category {
	case CategoryText, CategoryImageGeneration, CategoryVideoGeneration:
		return []graph.Port{prompt, image}
	case CategoryImageEditing:
		image.Required = true
		return []graph.Port{prompt, image, mask}
	case CategoryBackgroundRemoval, CategoryUpscaling:
		image.Required = true
		return []graph.Port{image}
	}
	prompt.Required = false
	return []graph.Port{prompt, image, mask}
}

func (c *Catalog) OutputType(id string) graph.PortType {
	m, _ := c.Get(id)
	switch m.Category {
	case CategoryText:
		return graph.PortString
	case CategoryImageGeneration, CategoryImageEditing, CategoryBackgroundRemoval, CategoryUpscaling:
		return graph.PortImage
	case CategoryVideoGeneration:
		return graph.PortVideo
	}
	return graph.PortAny
}

func baseID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return id
}
