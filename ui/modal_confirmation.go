package ui

type ConfirmationState struct {
	Active  bool
	Title   string
	Message string
}

func RenderConfirmationModal(state ConfirmationState, width, height int) string {
	return renderThreeSectionModal(state.Title, state.Message, FormatFooter("y", "Yes", "n", "No"), ModalTypeWarning, width, height)
}
