/*
Package pipeline runs the fixed sequence of stages that turns one uploaded
video into its published renditions.

Stages run strictly in order for a single job:

	copying_original -> [normalizing_container] -> rendering_native -> rendering_scaled

The normalization stage only runs for containers listed by
mediatypes.NeedsNormalization. When it runs, both rendering stages read the
normalized file; otherwise they read the uploaded source directly.

Every artifact is written under a hidden ".<name>.partial" file in the job's
output directory and renamed into place once the step succeeds, so readers
never observe a half-written rendition. The first failing stage ends the run
with a *StageError; later stages are not attempted.
*/
package pipeline
