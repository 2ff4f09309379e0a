package naming

// Labels attached to every resource hutch creates. Discovery for list,
// remove and prune goes through these; names stay the identity.
const (
	LabelManaged      = "dev.hutch"
	LabelWorkspace    = "dev.hutch.workspace"
	LabelRole         = "dev.hutch.role"
	LabelContainer    = "dev.hutch.container"
	LabelConfigOrigin = "dev.hutch.config.origin"
	LabelGitURL       = "dev.hutch.git"
	LabelEphemeral    = "dev.hutch.ephemeral"
)

// Managed selects every hutch resource.
func Managed() map[string]string {
	return map[string]string{LabelManaged: "true"}
}

// ForWorkspace selects the resources of one workspace.
func ForWorkspace(workspace string) map[string]string {
	return map[string]string{LabelManaged: "true", LabelWorkspace: workspace}
}

// ForRole labels a resource of the given role. An empty workspace marks a
// resource shared across workspaces.
func ForRole(workspace string, role Kind) map[string]string {
	l := map[string]string{LabelManaged: "true", LabelRole: string(role)}
	if workspace != "" {
		l[LabelWorkspace] = workspace
	}
	return l
}
