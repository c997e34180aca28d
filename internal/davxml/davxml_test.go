package davxml

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"testing"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const folderListing = `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:s="http://sabredav.org/ns" xmlns:oc="http://owncloud.org/ns" xmlns:x1="http://nextcloud.org/ns">
 <d:response>
  <d:href>/remote.php/dav/files/nextcloud/d/</d:href>
  <d:propstat>
   <d:prop>
    <d:getlastmodified>Tue, 13 Oct 2026 10:00:00 GMT</d:getlastmodified>
    <d:resourcetype><d:collection/></d:resourcetype>
   </d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
 </d:response>
 <d:response>
  <d:href>/remote.php/dav/files/nextcloud/d/file%201.txt</d:href>
  <d:propstat>
   <d:prop>
    <d:getlastmodified>Tue, 13 Oct 2026 10:00:00 GMT</d:getlastmodified>
    <d:getcontentlength>4</d:getcontentlength>
    <d:resourcetype/>
    <oc:fileid>42</oc:fileid>
    <x1:has-preview>false</x1:has-preview>
    <oc:checksums><oc:checksum>SHA1:abc</oc:checksum></oc:checksums>
   </d:prop>
   <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
  <d:propstat>
   <d:prop>
    <de:test xmlns:de="http://doesnt/exist"/>
   </d:prop>
   <d:status>HTTP/1.1 404 Not Found</d:status>
  </d:propstat>
 </d:response>
</d:multistatus>`

func TestParseMultiStatus(t *testing.T) {
	responses, err := ParseMultiStatus([]byte(folderListing))
	require.NoError(t, err)
	require.Len(t, responses, 2)

	folder := responses[0]
	assert.Equal(t, "/remote.php/dav/files/nextcloud/d/", folder.Href)
	assert.True(t, folder.IsCollection())
	assert.NoError(t, folder.Err())

	file := responses[1]
	assert.False(t, file.IsCollection())

	fileID, ok := file.Found(models.NamespaceOwnCloud, "fileid")
	require.True(t, ok)
	assert.Equal(t, "42", fileID.Value)

	// the server's prefix choice (x1) must not matter
	preview, ok := file.Found(models.NamespaceNextCloud, "has-preview")
	require.True(t, ok)
	assert.Equal(t, "false", preview.Value)

	checksums, ok := file.Found(models.NamespaceOwnCloud, "checksums")
	require.True(t, ok)
	assert.Equal(t, "SHA1:abc", checksums.Value)

	// present only in the 404 propstat
	_, ok = file.Found("http://doesnt/exist", "test")
	assert.False(t, ok)

	assert.Len(t, file.FoundProps(), 6)
}

func TestParseMultiStatusResponseLevelNotFound(t *testing.T) {
	body := `<d:multistatus xmlns:d="DAV:"><d:response><d:href>/x</d:href><d:status>HTTP/1.1 404 Not Found</d:status></d:response></d:multistatus>`
	responses, err := ParseMultiStatus([]byte(body))
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, http.StatusNotFound, responses[0].Status)
	assert.True(t, errors.IsNotFound(responses[0].Err()))
}

func TestParseMultiStatusInvalid(t *testing.T) {
	body := []byte("<d:multistatus xmlns:d=\"DAV:\"><d:response>")
	_, err := ParseMultiStatus(body)
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))

	var ne *errors.NextcloudError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, body, ne.Body)
}

func TestParseStatusLine(t *testing.T) {
	assert.Equal(t, 200, ParseStatusLine("HTTP/1.1 200 OK"))
	assert.Equal(t, 404, ParseStatusLine(" HTTP/1.1 404 Not Found "))
	assert.Equal(t, 0, ParseStatusLine("garbage"))
}

type propfindDoc struct {
	XMLName xml.Name `xml:"DAV: propfind"`
	Prop    struct {
		Items []struct {
			XMLName xml.Name
		} `xml:",any"`
	} `xml:"DAV: prop"`
}

func TestPropfindBody(t *testing.T) {
	body := PropfindBody([]PropName{
		{Space: models.NamespaceDAV, Local: "getetag", Prefix: "d"},
		{Space: models.NamespaceOwnCloud, Local: "fileid", Prefix: "oc"},
		{Space: "http://doesnt/exist", Local: "test2", Prefix: "de"},
		// a clashing prefix gets renamed
		{Space: "http://other/ns", Local: "x", Prefix: "de"},
	})

	var doc propfindDoc
	require.NoError(t, xml.Unmarshal(body, &doc))
	require.Len(t, doc.Prop.Items, 4)
	assert.Equal(t, xml.Name{Space: models.NamespaceDAV, Local: "getetag"}, doc.Prop.Items[0].XMLName)
	assert.Equal(t, xml.Name{Space: models.NamespaceOwnCloud, Local: "fileid"}, doc.Prop.Items[1].XMLName)
	assert.Equal(t, xml.Name{Space: "http://doesnt/exist", Local: "test2"}, doc.Prop.Items[2].XMLName)
	assert.Equal(t, xml.Name{Space: "http://other/ns", Local: "x"}, doc.Prop.Items[3].XMLName)
}

func TestPropfindBodyAllprop(t *testing.T) {
	assert.Contains(t, string(PropfindBody(nil)), "<d:allprop/>")
}

func TestProppatchBody(t *testing.T) {
	body := ProppatchBody([]PropValue{
		{PropName: PropName{Space: models.NamespaceOwnCloud, Local: "favorite", Prefix: "oc"}, Value: "1"},
		{PropName: NameFromQualified("{http://example.com/ns}note"), Value: "a < b & c"},
	})

	var doc struct {
		XMLName xml.Name `xml:"DAV: propertyupdate"`
		Set     struct {
			Prop struct {
				Items []struct {
					XMLName xml.Name
					Value   string `xml:",chardata"`
				} `xml:",any"`
			} `xml:"DAV: prop"`
		} `xml:"DAV: set"`
	}
	require.NoError(t, xml.Unmarshal(body, &doc))
	require.Len(t, doc.Set.Prop.Items, 2)
	assert.Equal(t, "1", doc.Set.Prop.Items[0].Value)
	assert.Equal(t, "a < b & c", doc.Set.Prop.Items[1].Value)
	assert.Equal(t, "http://example.com/ns", doc.Set.Prop.Items[1].XMLName.Space)
}

func TestParseOcsEnvelopeJSON(t *testing.T) {
	body := `{"ocs":{"meta":{"status":"ok","statuscode":200,"message":"OK"},"data":{"users":["alice","bob"]}}}`
	env, err := ParseOcsEnvelope([]byte(body))
	require.NoError(t, err)
	assert.True(t, env.OK())
	assert.NoError(t, env.Err())

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"alice", "bob"}, data["users"])
}

func TestParseOcsEnvelopeJSONNumbers(t *testing.T) {
	body := `{"ocs":{"meta":{"status":"failure","statuscode":997,"message":"Unauthorised"},"data":[]}}`
	env, err := ParseOcsEnvelope([]byte(body))
	require.NoError(t, err)
	assert.False(t, env.OK())

	failure := env.Err()
	assert.True(t, errors.IsOcsFailure(failure))
	assert.Contains(t, failure.Error(), "Unauthorised")
}

func TestParseOcsEnvelopeXML(t *testing.T) {
	body := `<?xml version="1.0"?>
<ocs>
 <meta><status>ok</status><statuscode>100</statuscode><message>OK</message></meta>
 <data>
  <id>7</id>
  <users><element>alice</element></users>
  <quota><free>10</free><used>2</used></quota>
  <groups/>
 </data>
</ocs>`
	env, err := ParseOcsEnvelope([]byte(body))
	require.NoError(t, err)
	assert.True(t, env.OK())

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "7", data["id"])
	assert.Equal(t, []interface{}{"alice"}, data["users"])
	assert.Equal(t, map[string]interface{}{"free": "10", "used": "2"}, data["quota"])
	assert.Equal(t, "", data["groups"])
}

func TestParseOcsEnvelopeXMLList(t *testing.T) {
	body := `<ocs><meta><statuscode>100</statuscode></meta><data><element><id>1</id></element><element><id>2</id></element></data></ocs>`
	env, err := ParseOcsEnvelope([]byte(body))
	require.NoError(t, err)

	list, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestParseOcsEnvelopeGarbage(t *testing.T) {
	_, err := ParseOcsEnvelope([]byte("<html>nope"))
	assert.True(t, errors.IsParseError(err))

	_, err = ParseOcsEnvelope(nil)
	assert.True(t, errors.IsParseError(err))

	_, err = ParseOcsEnvelope([]byte(`{"ocs":{"meta":{}}}`))
	assert.True(t, errors.IsParseError(err))
}

func TestJSONNumberSurvives(t *testing.T) {
	body := `{"ocs":{"meta":{"statuscode":100},"data":{"id":12}}}`
	env, err := ParseOcsEnvelope([]byte(body))
	require.NoError(t, err)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, json.Number("12"), data["id"])
}
