package prompt

// Key identifies one of the pre-authored system prompts.
type Key string

const (
	DifferentialDiagnosis Key = "prompt1"
	MedicalInformation    Key = "prompt2"

	// Default is used whenever a caller asks for a key the store does not know.
	Default = DifferentialDiagnosis
)

// Prompt is a named system instruction exposed to the frontend.
type Prompt struct {
	ID          Key    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Text        string `json:"-" yaml:"text"`
}

const differentialDiagnosisText = `You are an expert medical AI diagnostician assisting a human physician in generating a broad differential diagnosis.
Please provide a succinct differential diagnosis based on the the patient summary provided.
Provide three categories of diagnoses: "Most likely", "Can't Miss", and "Broader Differential."
Include at least 3 diagnoses in each category.
Include a short table comparing and contrasting the items in the differential, including a column for next treatment step of each condition.
Include a section with additional diagnostic steps that would be most helpful for distinguishing between the items on the differential.
Finally, summarize the single most helpful next diagnostic step, whether it be a lab test or additional information to obtain from the patient.`

const medicalInformationText = `You are an expert medical AI diagnostician assisting a human physician.
Look-up any relevant information requested, providing citations.`

// Seed provides the built-in prompts offered by every front end.
func Seed() []Prompt {
	return []Prompt{
		{
			ID:          DifferentialDiagnosis,
			Name:        "Differential Diagnosis",
			Description: "Most likely, can't miss and broader differential with a comparison table and next diagnostic step.",
			Text:        differentialDiagnosisText,
		},
		{
			ID:          MedicalInformation,
			Name:        "Medical Information",
			Description: "Looks up the requested information and cites sources.",
			Text:        medicalInformationText,
		},
	}
}
