package prompt

import (
	"fmt"
	"strings"

	"github.com/permale/atelier/internal/domain"
)

// ScenePrompts holds the four staging scenes of a presentation page, in the
// order the page renders them.
type ScenePrompts struct {
	Esquisse string
	Porte    string
	Ecrin    string
	Surface  string
}

// List returns the scenes in presentation-slot order.
func (s ScenePrompts) List() [domain.PresentationSlots]string {
	return [domain.PresentationSlots]string{s.Esquisse, s.Porte, s.Ecrin, s.Surface}
}

type sceneSet struct {
	worn    string
	display string
}

// presentationScenes keys are lowered substrings matched against the form
// jewelry type. Order matters: first match wins.
var presentationScenes = []struct {
	match  string
	scenes sceneSet
}{
	{"alliance", sceneSet{
		worn:    "elegantly worn on a hand with manicured nails, soft natural lighting, intimate close-up",
		display: "resting on a velvet ring cushion inside an open luxury ring box",
	}},
	{"bague", sceneSet{
		worn:    "elegantly worn on a hand with manicured nails, soft natural lighting, intimate close-up",
		display: "resting on a velvet ring cushion inside an open luxury ring box",
	}},
	{"chevalière", sceneSet{
		worn:    "elegantly worn on a hand with manicured nails, soft natural lighting, intimate close-up",
		display: "resting on a velvet ring cushion inside an open luxury ring box",
	}},
	{"collier", sceneSet{
		worn:    "elegantly worn around the neck of a model, soft natural lighting, portrait framing",
		display: "draped over a velvet necklace bust inside an open luxury jewelry box",
	}},
	{"pendentif", sceneSet{
		worn:    "elegantly worn around the neck of a model, soft natural lighting, portrait framing",
		display: "draped over a velvet necklace bust inside an open luxury jewelry box",
	}},
	{"bracelet", sceneSet{
		worn:    "elegantly worn on a wrist, soft natural lighting, intimate close-up",
		display: "coiled on a velvet cushion inside an open luxury jewelry box",
	}},
	{"boucle", sceneSet{
		worn:    "elegantly worn on the ear of a model, soft natural lighting, profile close-up",
		display: "presented on a velvet earring stand inside an open luxury jewelry box",
	}},
	{"percing", sceneSet{
		worn:    "elegantly worn by a model, soft natural lighting, close-up framing",
		display: "presented on a velvet cushion inside an open luxury jewelry box",
	}},
}

var genericScenes = sceneSet{
	worn:    "elegantly worn by a model, soft natural lighting, close-up framing",
	display: "presented on a velvet cushion inside an open luxury jewelry box",
}

func scenesForType(typeBijou string) sceneSet {
	lowered := strings.ToLower(typeBijou)
	for _, e := range presentationScenes {
		if strings.Contains(lowered, e.match) {
			return e.scenes
		}
	}
	return genericScenes
}

// BuildPresentationPrompts derives the four scene prompts for the project's
// selected candidate. Each prompt instructs the renderer to reproduce the
// exact piece from the validated design, never to reinterpret it.
func BuildPresentationPrompts(p domain.Projet) ScenePrompts {
	subject := fmt.Sprintf("the exact same %s from the approved design, identical in every detail", TypeEnglish(p.TypeBijou))
	scenes := scenesForType(p.TypeBijou)

	return ScenePrompts{
		Esquisse: fmt.Sprintf("Hand-drawn jeweler's sketch of %s, pencil and ink on cream paper, annotated with craftsmanship notes, artistic atelier style", subject),
		Porte:    fmt.Sprintf("Photorealistic photograph of %s, %s, shallow depth of field, high-end editorial style", subject, scenes.worn),
		Ecrin:    fmt.Sprintf("Photorealistic photograph of %s, %s, warm boutique lighting, luxury product photography", subject, scenes.display),
		Surface:  fmt.Sprintf("Photorealistic photograph of %s placed on an elegant marble surface with soft shadows and subtle reflections, minimalist luxury staging, editorial style", subject),
	}
}
