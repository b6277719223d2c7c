package search

import "github.com/ChrisMcGann/tagrecon/pkg/core"

// GetTagsFromSequence returns one tag of tagLength residues for every start
// offset of the terminus-decorated sequence of peptide. Residue masses include
// the applied modifications. The N-terminal mass of a tag is the summed mass
// before it; the C-terminal mass is what remains of neutralMass after the
// N-terminal mass, the tag itself and water.
func GetTagsFromSequence(peptide core.DigestedPeptide, tagLength int, neutralMass float64, model core.MassModel) []core.TagInfo {
	seq := peptide.SequenceWithTermini()
	if tagLength < 1 || tagLength > len(seq) {
		return nil
	}
	masses := peptide.ResidueMasses(model)
	water := core.WaterMass(model)

	tags := make([]core.TagInfo, 0, len(seq)-tagLength+1)
	nTerminus := 0.0
	for i := 0; i+tagLength <= len(seq); i++ {
		tagMass := 0.0
		for j := i; j < i+tagLength; j++ {
			tagMass += masses[j]
		}
		tags = append(tags, core.TagInfo{
			Tag:           seq[i : i+tagLength],
			NTerminusMass: nTerminus,
			CTerminusMass: neutralMass - nTerminus - tagMass - water,
			Start:         i,
		})
		nTerminus += masses[i]
	}
	return tags
}
