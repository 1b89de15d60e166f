package inventory

// Well-known property names on the inventory item interface.
const (
	PropertyPresent    = "Present"
	PropertyPrettyName = "PrettyName"
)

// PropertyMap maps property names to values.
type PropertyMap map[string]any

// InterfaceMap maps interface names to their properties.
type InterfaceMap map[string]PropertyMap

// ObjectMap maps object paths to their interfaces. It is the payload of a
// manager Notify call.
type ObjectMap map[string]InterfaceMap

// ItemObject builds the Notify payload that sets Present and PrettyName
// on the item interface of one inventory object.
func ItemObject(path, itemInterface string, present bool, prettyName string) ObjectMap {
	return ObjectMap{
		path: InterfaceMap{
			itemInterface: PropertyMap{
				PropertyPresent:    present,
				PropertyPrettyName: prettyName,
			},
		},
	}
}
