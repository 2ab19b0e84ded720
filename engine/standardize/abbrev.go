package standardize

import (
	"regexp"
	"strings"
)

// abbrevEntry pairs a word-boundary pattern with its expansion.
type abbrevEntry struct {
	pattern *regexp.Regexp
	expand  string
}

var abbrevTable = buildAbbrevTable(map[string]string{
	"HTN": "hypertension", "MI": "myocardial infarction", "DM": "diabetes mellitus",
	"T2DM": "type 2 diabetes mellitus", "T1DM": "type 1 diabetes mellitus",
	"COPD": "chronic obstructive pulmonary disease", "CHF": "congestive heart failure",
	"CAD": "coronary artery disease", "CKD": "chronic kidney disease",
	"ESRD": "end stage renal disease", "AF": "atrial fibrillation",
	"AFib": "atrial fibrillation", "DVT": "deep vein thrombosis",
	"PE": "pulmonary embolism", "UTI": "urinary tract infection",
	"URI": "upper respiratory infection", "GERD": "gastroesophageal reflux disease",
	"IBS": "irritable bowel syndrome", "IBD": "inflammatory bowel disease",
	"RA": "rheumatoid arthritis", "OA": "osteoarthritis",
	"MS": "multiple sclerosis", "ALS": "amyotrophic lateral sclerosis",
	"PD": "Parkinson's disease", "AD": "Alzheimer's disease",
	"TBI": "traumatic brain injury", "CVA": "cerebrovascular accident",
	"TIA": "transient ischemic attack", "PTSD": "post-traumatic stress disorder",
	"OCD": "obsessive-compulsive disorder", "ADHD": "attention deficit hyperactivity disorder",
	"SOB": "shortness of breath", "N/V": "nausea and vomiting",
	"HA": "headache", "LOC": "loss of consciousness",
	"BP": "blood pressure", "HR": "heart rate", "RR": "respiratory rate",
	"BMI": "body mass index", "WBC": "white blood cell count",
	"RBC": "red blood cell count", "Hgb": "hemoglobin", "Hct": "hematocrit",
	"ALT": "alanine aminotransferase", "AST": "aspartate aminotransferase",
	"BUN": "blood urea nitrogen", "Cr": "creatinine",
	"TSH": "thyroid stimulating hormone", "LDL": "low-density lipoprotein",
	"HDL": "high-density lipoprotein", "TG": "triglycerides",
	"ACEI": "angiotensin-converting enzyme inhibitor", "ARB": "angiotensin receptor blocker",
	"BB": "beta blocker", "CCB": "calcium channel blocker",
	"NSAID": "nonsteroidal anti-inflammatory drug", "PPI": "proton pump inhibitor",
	"SSRI": "selective serotonin reuptake inhibitor", "mg": "milligrams",
	"IV": "intravenous", "IM": "intramuscular", "PO": "oral",
	"prn": "as needed", "qd": "once daily", "bid": "twice daily",
	"tid": "three times daily", "qid": "four times daily",
	"DNA": "deoxyribonucleic acid", "RNA": "ribonucleic acid",
	"mRNA": "messenger ribonucleic acid", "PCR": "polymerase chain reaction",
	"CT": "computed tomography", "MRI": "magnetic resonance imaging",
	"EKG": "electrocardiogram", "ECG": "electrocardiogram",
	"EEG": "electroencephalogram", "CXR": "chest x-ray",
	"CBC": "complete blood count", "BMP": "basic metabolic panel",
	"GFR": "glomerular filtration rate", "HbA1c": "hemoglobin A1c",
})

func buildAbbrevTable(entries map[string]string) []abbrevEntry {
	table := make([]abbrevEntry, 0, len(entries))
	for abbrev, expansion := range entries {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(abbrev) + `\b`)
		table = append(table, abbrevEntry{pattern: pattern, expand: expansion})
	}
	return table
}

// ExpandAbbreviations rewrites known medical abbreviations to their full
// term. This is a fallback table — primary expansion happens in the LLM
// extraction prompt; this only catches what the model left
// abbreviated.
func ExpandAbbreviations(name string) string {
	out := name
	for _, e := range abbrevTable {
		out = e.pattern.ReplaceAllString(out, e.expand)
	}
	return strings.TrimSpace(out)
}
